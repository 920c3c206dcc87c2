package handlers

import (
	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps the go-playground/validator library to implement Echo's Validator interface.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new CustomValidator.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate implements the echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// ExecuteRequest is the DTO for the script execution endpoint. Exactly one
// of Script or ScriptName must be provided.
type ExecuteRequest struct {
	Script               string            `json:"script" validate:"required_without=ScriptName"`
	ScriptName           string            `json:"script_name" validate:"required_without=Script"`
	SessionID            string            `json:"session_id"`
	TrustLevel           string            `json:"trust_level" validate:"omitempty,oneof=Minimal Standard Elevated Maximum"`
	TimeoutSeconds       int               `json:"timeout_seconds" validate:"omitempty,min=1,max=300"`
	OutputFormat         string            `json:"output_format" validate:"omitempty,oneof=plain json xml yaml table csv markdown"`
	Variables            map[string]string `json:"variables"`
	ImportedPackages     []string          `json:"imported_packages"`
	WorkingDirectory     string            `json:"working_directory"`
	EnvironmentVariables map[string]string `json:"environment_variables"`
}

// SetSessionValueRequest is the DTO for writing one session key.
type SetSessionValueRequest struct {
	Value string `json:"value" validate:"required"`
}
