package models

type SwitchTabRequest struct {
	Tab Tab `json:"tab"`
}

// LocationUpdateRequest reports one geolocation outcome. Coordinates are only read
// when Status is "available".
type LocationUpdateRequest struct {
	Status    LocationStatus `json:"status"`
	Latitude  *float64       `json:"latitude,omitempty"`
	Longitude *float64       `json:"longitude,omitempty"`
	Reason    string         `json:"reason,omitempty"`
}

// SelectImageRequest is the JSON alternative to a multipart upload.
type SelectImageRequest struct {
	ImageBase64 string `json:"image_base64"`
	MIMEType    string `json:"mime_type,omitempty"`
}

type SubmitClaimRequest = Attestation
