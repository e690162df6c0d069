package dto

type Keys struct {
	Keys []string `json:"keys"`
}
