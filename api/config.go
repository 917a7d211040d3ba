package api

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config is the parameters of the control HTTP server.
type Config struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
	// ReadHeaderTimeout in seconds; zero picks a safe default.
	ReadHeaderTimeout int `json:"read_header_timeout" yaml:"read_header_timeout"`
}

// Validate checks the config required fields.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ReadHeaderTimeout, validation.Min(0)),
	)
}

// TCPAddr returns the tcp address for the server.
func (c Config) TCPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
