package model

type SignUpRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	DisplayName string `json:"display_name" validate:"required,max=100"`
	Role        Role   `json:"role" validate:"required,role"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     Role   `json:"role" validate:"required,role"`
}

type SignInResponse struct {
	User      Profile `json:"user"`
	Token     string  `json:"token"`
	ExpiresAt int64   `json:"expires_at,omitempty"`
}
