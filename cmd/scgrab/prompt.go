package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"scgrab/internal/core"
	"scgrab/internal/i18n"
	"scgrab/internal/soundcloud"
)

// askFunc matches survey.AskOne so prompts can be scripted in tests.
type askFunc func(p survey.Prompt, response interface{}, opts ...survey.AskOpt) error

// prompter asks the interactive questions and implements core.FieldEditor.
type prompter struct {
	ask askFunc
	loc *i18n.Localizer
}

var _ core.FieldEditor = (*prompter)(nil)

func newPrompter(ask askFunc, loc *i18n.Localizer) *prompter {
	return &prompter{ask: ask, loc: loc}
}

func (p *prompter) askURL() (string, error) {
	var answer string
	prompt := &survey.Input{Message: p.loc.T("prompt.url")}
	if err := p.ask(prompt, &answer, survey.WithValidator(p.validateURL)); err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func (p *prompter) askDirectory(current string) (string, error) {
	if current == "" {
		current = "."
	}
	var answer string
	prompt := &survey.Input{Message: p.loc.T("prompt.directory"), Default: current}
	if err := p.ask(prompt, &answer, survey.WithValidator(p.validateDirectory)); err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return current, nil
	}
	return answer, nil
}

func (p *prompter) askAnother() (bool, error) {
	another := false
	prompt := &survey.Confirm{Message: p.loc.T("prompt.another")}
	if err := p.ask(prompt, &another); err != nil {
		return false, err
	}
	return another, nil
}

// EditFields lets the user pick which fields to change and asks for each new value,
// pre-filled with the current one.
func (p *prompter) EditFields(ctx context.Context, _ *core.TrackDescriptor, current []core.Field) ([]core.Field, error) {
	options := make([]string, 0, len(current))
	values := make(map[core.Label]string, len(current))
	for _, f := range current {
		options = append(options, f.Label.String())
		values[f.Label] = f.Value
	}

	var selected []string
	prompt := &survey.MultiSelect{
		Message:  p.loc.T("prompt.fields"),
		Options:  options,
		Help:     p.loc.T("prompt.fields_help"),
		PageSize: len(options),
	}
	if err := p.ask(prompt, &selected); err != nil {
		return nil, err
	}

	edits := make([]core.Field, 0, len(selected))
	for _, name := range selected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		label, err := core.ParseLabel(name)
		if err != nil {
			return nil, err
		}

		var value string
		input := &survey.Input{
			Message: p.loc.T("prompt.field_value", label),
			Default: values[label],
		}
		if err := p.ask(input, &value); err != nil {
			return nil, err
		}
		edits = append(edits, core.Field{Label: label, Value: strings.TrimSpace(value)})
	}

	return edits, nil
}

func (p *prompter) validateURL(ans interface{}) error {
	s, ok := ans.(string)
	if !ok {
		return fmt.Errorf("unexpected answer type %T", ans)
	}
	s = strings.TrimSpace(s)
	if !soundcloud.CanResolve(s) {
		return errors.New(p.loc.T("error.invalid_url", s))
	}
	return nil
}

func (p *prompter) validateDirectory(ans interface{}) error {
	s, ok := ans.(string)
	if !ok {
		return fmt.Errorf("unexpected answer type %T", ans)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	fi, err := os.Stat(s)
	if err != nil || !fi.IsDir() {
		return errors.New(p.loc.T("error.dir_not_found"))
	}
	return nil
}
