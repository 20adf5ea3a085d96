package pushtokenregister

type Input struct {
	Token    string `json:"token" validate:"required,max=4096"`
	Platform string `json:"platform" validate:"required_unless=Remove true,omitempty,oneof=android ios"`
	Remove   bool   `json:"remove,omitempty"`
}

type Output struct {
	Registered  bool   `json:"registered"`
	Removed     bool   `json:"removed"`
	EndpointArn string `json:"endpointArn,omitempty"`
	PushEnabled bool   `json:"pushEnabled"`
}
