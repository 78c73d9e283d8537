package dto

// UploadRequisitoRequest attaches an already hosted document to a requisito.
type UploadRequisitoRequest struct {
	DocumentURL string `form:"document_url" json:"document_url" validate:"omitempty,url"`
}

// RejectRequisitoRequest carries the mandatory rejection reason.
type RejectRequisitoRequest struct {
	Reason string `json:"reason"`
}
