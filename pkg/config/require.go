package config

import "fmt"

func MustNonEmpty(value, envName string) error {
	if value == "" {
		return fmt.Errorf("missing required env %s", envName)
	}
	return nil
}

func MustOneOf(value, envName string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("env %s=%q must be one of %v", envName, value, allowed)
}
