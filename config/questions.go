package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Question struct {
	ID   string `validate:"required,alphanum" yaml:"id"`
	Text string `validate:"required" yaml:"text"`
}

// LoadQuestions reads a YAML question suite, e.g.:
//
//	- id: q1
//	  text: How many trials are currently recruiting for diabetes?
func LoadQuestions(path string) ([]Question, error) {
	var questions []Question

	fileContent, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(fileContent, &questions); err != nil {
		return nil, err
	}

	v := validator.New()
	for _, q := range questions {
		if err := v.Struct(q); err != nil {
			if validationErrors, ok := err.(validator.ValidationErrors); ok {
				fieldError := validationErrors[0]
				return nil, fmt.Errorf(
					"question '%s': validation failed for field '%s' on tag '%s'",
					q.ID,
					fieldError.Field(),
					fieldError.Tag(),
				)
			}
			return nil, err
		}
	}

	return questions, nil
}
