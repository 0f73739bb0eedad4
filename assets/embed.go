package assets

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
)

// ExampleConfigYAML is a commented configuration listing every option with
// its default value.
//
//go:embed templateplay.example.yaml
var ExampleConfigYAML []byte

// WriteExampleConfig writes ExampleConfigYAML to path. Existing files are not
// overwritten.
func WriteExampleConfig(path string) error {
	if len(ExampleConfigYAML) == 0 {
		return errors.New("embedded templateplay.example.yaml is empty")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("write example config: %w", err)
	}
	if _, err := f.Write(ExampleConfigYAML); err != nil {
		f.Close()
		return fmt.Errorf("write example config: %w", err)
	}
	return f.Close()
}
