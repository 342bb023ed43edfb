package bot

import (
	"errors"

	"caloriebot/internal/domain"
	"caloriebot/internal/estimate"
	"caloriebot/internal/locale"
)

// Replies renders pipeline outcomes into user-facing text. Provider error
// details never reach the user.
type Replies struct {
	pack *locale.Pack
}

func NewReplies(pack *locale.Pack) *Replies {
	return &Replies{pack: pack}
}

func (r *Replies) glyph(src domain.InputKind) string {
	if src == domain.KindPhoto {
		return r.pack.Glyphs.Photo
	}
	return r.pack.Glyphs.Text
}

func (r *Replies) pick(src domain.InputKind, photo, text string) string {
	if src == domain.KindPhoto {
		return photo
	}
	return text
}

// Result renders an AnalysisResult. Every outcome is prefixed with the glyph
// of its source.
func (r *Replies) Result(res domain.AnalysisResult) string {
	t := r.pack.Texts
	var body string
	switch res.Kind {
	case domain.ResultFoodEstimate:
		body = res.Estimate
	case domain.ResultNoFood:
		body = r.pick(res.Source, t.NoFoodPhoto, t.NoFoodText)
	case domain.ResultTimedOut:
		body = r.pick(res.Source, t.TimeoutPhoto, t.TimeoutText)
	default:
		if errors.Is(res.Err, estimate.ErrUnrecognized) {
			body = r.pick(res.Source, t.UnrecognizedPhoto, t.UnrecognizedText)
		} else {
			body = t.AnalysisFailed
		}
	}
	return r.glyph(res.Source) + " " + body
}

func (r *Replies) Ack(src domain.InputKind) string {
	return r.pick(src, r.pack.Texts.AnalyzingPhoto, r.pack.Texts.AnalyzingText)
}

func (r *Replies) TooSmall() string       { return r.pack.Texts.PhotoTooSmall }
func (r *Replies) PhotoFailed() string    { return r.pack.Texts.PhotoFailed }
func (r *Replies) TextFailed() string     { return r.pack.Texts.TextFailed }
func (r *Replies) GenericFailure() string { return r.pack.Texts.GenericFailure }
