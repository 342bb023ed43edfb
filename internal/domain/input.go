package domain

// InputKind discriminates the two shapes a user turn can take.
type InputKind int

const (
	KindText InputKind = iota
	KindPhoto
)

func (k InputKind) String() string {
	switch k {
	case KindPhoto:
		return "photo"
	default:
		return "text"
	}
}

// InboundInput is one user turn as seen by the estimation core.
type InboundInput struct {
	Kind  InputKind
	Text  string
	Photo []byte
}

// TextInput builds a text turn.
func TextInput(s string) InboundInput { return InboundInput{Kind: KindText, Text: s} }

// PhotoInput builds a photo turn.
func PhotoInput(b []byte) InboundInput { return InboundInput{Kind: KindPhoto, Photo: b} }

// NormalizedImage is the size-bounded, transport-ready form of a photo.
type NormalizedImage struct {
	Base64   string
	MIMEType string
	Width    int
	Height   int
	Fallback bool // raw bytes were forwarded because decoding failed
}

// DataURL renders the image as a data: URL.
func (n *NormalizedImage) DataURL() string {
	return "data:" + n.MIMEType + ";base64," + n.Base64
}

// NormalizedInput is a validated turn ready to embed in a provider request.
type NormalizedInput struct {
	Kind  InputKind
	Text  string
	Image *NormalizedImage
}
