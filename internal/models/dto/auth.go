package dto

// CredentialsRequest is the body of /register and /login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
