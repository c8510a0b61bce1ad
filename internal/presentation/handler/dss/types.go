package dss

type deleteResponse struct {
	Existed bool `json:"existed"`
}
