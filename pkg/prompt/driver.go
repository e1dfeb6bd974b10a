// Package prompt collects form values on a terminal. Driver abstracts the
// prompt library so filling logic can be tested with scripted answers.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// ErrAborted is returned when the user interrupts a prompt.
var ErrAborted = errors.New("prompt: aborted")

// InputConfig configures a text or password prompt. Validator runs on every
// answer before the prompt returns.
type InputConfig struct {
	Message   string
	Help      string
	Default   string
	Validator func(string) error
}

// ConfirmConfig configures a yes/no prompt.
type ConfirmConfig struct {
	Message string
	Default bool
	Help    string
}

// SelectConfig configures a pick list. Defaults only applies to
// MultiSelect.
type SelectConfig struct {
	Message      string
	Help         string
	Options      []string
	DefaultIndex int
	Defaults     []int
	PageSize     int
}

// Driver is the terminal behind Fill.
type Driver interface {
	Input(ctx context.Context, cfg InputConfig) (string, error)
	Password(ctx context.Context, cfg InputConfig) (string, error)
	Confirm(ctx context.Context, cfg ConfirmConfig) (bool, error)
	Select(ctx context.Context, cfg SelectConfig) (int, error)
	MultiSelect(ctx context.Context, cfg SelectConfig) ([]int, error)
	Info(ctx context.Context, msg string) error
}

// SurveyDriver prompts through survey.
type SurveyDriver struct {
	in  terminal.FileReader
	out terminal.FileWriter
	err io.Writer
}

var _ Driver = (*SurveyDriver)(nil)

// DriverOption customises a SurveyDriver.
type DriverOption func(*SurveyDriver)

// WithStdio replaces the process terminal.
func WithStdio(in terminal.FileReader, out terminal.FileWriter, errOut io.Writer) DriverOption {
	return func(d *SurveyDriver) {
		d.in, d.out, d.err = in, out, errOut
	}
}

// NewSurveyDriver prompts on stdin/stdout unless WithStdio says otherwise.
func NewSurveyDriver(options ...DriverOption) *SurveyDriver {
	d := &SurveyDriver{in: os.Stdin, out: os.Stdout, err: os.Stderr}
	for _, opt := range options {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// ask runs one survey prompt and maps Ctrl+C onto ErrAborted.
func (d *SurveyDriver) ask(ctx context.Context, p survey.Prompt, answer any, validate func(string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := []survey.AskOpt{survey.WithStdio(d.in, d.out, d.err)}
	if validate != nil {
		opts = append(opts, survey.WithValidator(func(ans any) error {
			text, _ := ans.(string)
			return validate(text)
		}))
	}
	err := survey.AskOne(p, answer, opts...)
	if errors.Is(err, terminal.InterruptErr) {
		return ErrAborted
	}
	return err
}

func (d *SurveyDriver) Input(ctx context.Context, cfg InputConfig) (string, error) {
	var text string
	err := d.ask(ctx, &survey.Input{Message: cfg.Message, Help: cfg.Help, Default: cfg.Default}, &text, cfg.Validator)
	return text, err
}

func (d *SurveyDriver) Password(ctx context.Context, cfg InputConfig) (string, error) {
	var text string
	err := d.ask(ctx, &survey.Password{Message: cfg.Message, Help: cfg.Help}, &text, cfg.Validator)
	return text, err
}

func (d *SurveyDriver) Confirm(ctx context.Context, cfg ConfirmConfig) (bool, error) {
	var yes bool
	err := d.ask(ctx, &survey.Confirm{Message: cfg.Message, Help: cfg.Help, Default: cfg.Default}, &yes, nil)
	return yes, err
}

// Select answers with the chosen index.
func (d *SurveyDriver) Select(ctx context.Context, cfg SelectConfig) (int, error) {
	p := &survey.Select{Message: cfg.Message, Options: cfg.Options, Help: cfg.Help, PageSize: cfg.PageSize}
	if cfg.DefaultIndex > 0 && cfg.DefaultIndex < len(cfg.Options) {
		p.Default = cfg.DefaultIndex
	}
	idx := -1
	if err := d.ask(ctx, p, &idx, nil); err != nil {
		return -1, err
	}
	return idx, nil
}

// MultiSelect answers with the chosen indices in option order.
func (d *SurveyDriver) MultiSelect(ctx context.Context, cfg SelectConfig) ([]int, error) {
	p := &survey.MultiSelect{Message: cfg.Message, Options: cfg.Options, Help: cfg.Help, PageSize: cfg.PageSize}
	if len(cfg.Defaults) > 0 {
		p.Default = cfg.Defaults
	}
	var picked []int
	if err := d.ask(ctx, p, &picked, nil); err != nil {
		return nil, err
	}
	return picked, nil
}

// Info prints msg on its own line.
func (d *SurveyDriver) Info(ctx context.Context, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(d.out, msg)
	return err
}
