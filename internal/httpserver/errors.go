package httpserver

const (
	ErrInvalidJSON   = "invalid json"
	ErrDependency    = "dependency error"
	ErrNotFound      = "not found"
	ErrTextImmutable = "text is not editable"
	ErrInvalidToken  = "invalid token"
)
