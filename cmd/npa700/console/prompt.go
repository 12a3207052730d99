package console

import (
	"strings"

	"github.com/chzyer/readline"
)

const (
	Yes = "y"
	No  = "n"
)

var yesNoConstraints = []string{Yes, No}
var noYesConstraints = []string{No, Yes}

// Confirm asks a yes/no question defaulting to no.
func Confirm(question string) (bool, error) {
	answer, err := Prompt(question, noYesConstraints...)
	if err != nil {
		return false, err
	}
	return answer == Yes, nil
}

func YesOrNo(question string) (string, error) {
	return Prompt(question, yesNoConstraints...)
}

// Ask reads a free-form answer and returns def when nothing was typed.
func Ask(question, def string) (string, error) {
	if def != "" {
		question = question + " (" + def + ")"
	}
	rl, err := readline.New(question + ": ")
	if err != nil {
		return "", err
	}
	defer rl.Close()
	response, err := rl.Readline()
	if err != nil {
		return "", err
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return def, nil
	}
	return response, nil
}

// Prompt reads an answer limited to constraints. The first constraint is the
// default and is returned for empty or unmatched input.
func Prompt(question string, constraints ...string) (string, error) {
	if len(constraints) == 0 {
		return Ask(question, "")
	}
	rl, err := readline.New(promptText(question, constraints))
	if err != nil {
		return "", err
	}
	defer rl.Close()
	response, err := rl.Readline()
	if err != nil {
		return "", err
	}
	return matchConstraint(response, constraints), nil
}

func promptText(question string, constraints []string) string {
	var prompt strings.Builder
	prompt.WriteString(question)
	prompt.WriteString(" [")
	prompt.WriteString(strings.ToUpper(constraints[0]))
	for i := 1; i < len(constraints); i++ {
		prompt.WriteString("/")
		prompt.WriteString(constraints[i])
	}
	prompt.WriteString("]:")
	return prompt.String()
}

func matchConstraint(response string, constraints []string) string {
	normalized := strings.ToLower(strings.TrimSpace(response))
	for _, c := range constraints {
		if normalized == c {
			return normalized
		}
	}
	return constraints[0]
}
