package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-formkit/pkg/openapi"
)

// FromOperation derives a Definition from the request body of an OpenAPI
// operation. Properties are emitted in name order since OpenAPI objects carry
// no field order.
func FromOperation(op openapi.Operation) (Definition, error) {
	body := op.RequestBody
	if body.Type != "" && body.Type != "object" {
		return Definition{}, fmt.Errorf("schema: operation %q: request body is %s, want object", op.ID, body.Type)
	}
	if len(body.Properties) == 0 {
		return Definition{}, fmt.Errorf("schema: operation %q: request body declares no properties", op.ID)
	}
	fields, err := fieldsFromObject(body)
	if err != nil {
		return Definition{}, fmt.Errorf("schema: operation %q: %w", op.ID, err)
	}
	title := body.Title
	if title == "" {
		title = op.Summary
	}
	return Definition{ID: op.ID, Title: title, Fields: fields}, nil
}

func fieldsFromObject(obj openapi.Schema) ([]FieldDefinition, error) {
	required := make(map[string]bool, len(obj.Required))
	for _, name := range obj.Required {
		required[name] = true
	}

	names := make([]string, 0, len(obj.Properties))
	for name := range obj.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]FieldDefinition, 0, len(names))
	for _, name := range names {
		field, err := fieldFromProperty(name, obj.Properties[name], required[name])
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func fieldFromProperty(name string, prop openapi.Schema, required bool) (FieldDefinition, error) {
	if strings.Contains(name, ".") {
		return FieldDefinition{}, fmt.Errorf("property %q contains '.'", name)
	}
	field := FieldDefinition{
		Name:  name,
		Label: prop.Title,
		Type:  fieldTypeOf(prop),
	}
	if required {
		field.Rules = append(field.Rules, Rule{Kind: RuleRequired})
	}

	switch field.Type {
	case FieldTypeInteger:
		field.Rules = append(field.Rules, Rule{Kind: RuleInteger})
	case FieldTypeNumber:
		field.Rules = append(field.Rules, Rule{Kind: RuleNumber})
	}
	if prop.MinLength != nil && *prop.MinLength > 0 {
		field.Rules = append(field.Rules, Rule{Kind: RuleMinLength, Params: valueParam(strconv.Itoa(*prop.MinLength))})
	}
	if prop.MaxLength != nil {
		field.Rules = append(field.Rules, Rule{Kind: RuleMaxLength, Params: valueParam(strconv.Itoa(*prop.MaxLength))})
	}
	if prop.Pattern != "" {
		field.Rules = append(field.Rules, Rule{Kind: RulePattern, Params: map[string]string{"pattern": prop.Pattern}})
	}
	if prop.Minimum != nil {
		field.Rules = append(field.Rules, Rule{Kind: RuleMin, Params: valueParam(formatFloat(*prop.Minimum))})
	}
	if prop.Maximum != nil {
		field.Rules = append(field.Rules, Rule{Kind: RuleMax, Params: valueParam(formatFloat(*prop.Maximum))})
	}
	if len(prop.Enum) > 0 {
		values := make([]string, 0, len(prop.Enum))
		for _, v := range prop.Enum {
			values = append(values, stringify(v))
		}
		field.Rules = append(field.Rules, Rule{Kind: RuleEnum, Params: map[string]string{"values": strings.Join(values, ",")}})
	}
	if prop.MinItems != nil && *prop.MinItems > 0 {
		field.Rules = append(field.Rules, Rule{Kind: RuleMinItems, Params: valueParam(strconv.Itoa(*prop.MinItems))})
	}

	if field.Type == FieldTypeArray && prop.Items != nil && len(prop.Items.Properties) > 0 {
		itemFields, err := fieldsFromObject(*prop.Items)
		if err != nil {
			return FieldDefinition{}, fmt.Errorf("property %q items: %w", name, err)
		}
		field.Items = &Definition{ID: name + "-item", Fields: itemFields}
	}
	if field.Type == FieldTypeObject && prop.Ref != "" && len(prop.Properties) == 0 {
		return FieldDefinition{}, fmt.Errorf("property %q is an unresolved reference %s", name, prop.Ref)
	}
	return field, nil
}

func fieldTypeOf(prop openapi.Schema) FieldType {
	switch prop.Type {
	case "integer":
		return FieldTypeInteger
	case "number":
		return FieldTypeNumber
	case "boolean":
		return FieldTypeBoolean
	case "array":
		return FieldTypeArray
	case "object":
		return FieldTypeObject
	case "string":
		if prop.Format == "date" || prop.Format == "date-time" {
			return FieldTypeDate
		}
		return FieldTypeString
	}
	if len(prop.Properties) > 0 || prop.Ref != "" {
		return FieldTypeObject
	}
	return FieldTypeString
}

func valueParam(value string) map[string]string {
	return map[string]string{"value": value}
}
