package config

import "errors"

var (
	ErrInvalidBaseURL = errors.New("BASE_URL is invalid")
	ErrJWTSecretEmpty = errors.New("JWT_SECRET is empty or default outside local")

	ErrInvalidDuration = errors.New("invalid duration env")
	ErrInvalidInt      = errors.New("invalid int env")
	ErrInvalidDBPool   = errors.New("invalid db pool config")
	ErrInvalidLogLevel = errors.New("invalid LOG_LEVEL")
	ErrInvalidGeo      = errors.New("invalid geo config")

	ErrConfigFile = errors.New("config file unreadable")
)
