package ads

import (
	"errors"
	"html"
	"net/url"
	"path"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/radiusdt/game-ads/internal/config"
	"github.com/radiusdt/game-ads/internal/models"
)

// Normalizer cleans and validates ad input before it reaches a store.
type Normalizer struct {
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
	cfg       config.AdsConfig
}

// NewNormalizer builds a Normalizer with the given fallbacks.
func NewNormalizer(cfg config.AdsConfig) *Normalizer {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("weburl", func(fl validator.FieldLevel) bool {
		return isWebURL(fl.Field().String())
	})

	return &Normalizer{
		validate:  v,
		sanitizer: bluemonday.StrictPolicy(),
		cfg:       cfg,
	}
}

// Normalize returns the cleaned input for an ad of type t, or an error
// matching ErrValidation.
func (n *Normalizer) Normalize(t models.AdType, in models.AdInput) (models.AdInput, error) {
	out := models.AdInput{
		Title:     n.cleanTitle(in.Title),
		ImageURL:  strings.TrimSpace(in.ImageURL),
		TargetURL: strings.TrimSpace(in.TargetURL),
	}
	if out.ImageURL != "" {
		out.ImageURL = n.FixImageURL(t, out.ImageURL)
	}

	if err := n.validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return models.AdInput{}, describe(verrs[0])
		}
		return models.AdInput{}, invalid("invalid ad: %v", err)
	}
	return out, nil
}

// cleanTitle strips markup and surrounding whitespace.
func (n *Normalizer) cleanTitle(s string) string {
	return strings.TrimSpace(html.UnescapeString(n.sanitizer.Sanitize(s)))
}

// FixImageURL rewrites Imgur page links to direct image links and replaces
// anything that is not an absolute http(s) URL with the fallback image.
func (n *Normalizer) FixImageURL(t models.AdType, raw string) string {
	raw = strings.TrimSpace(raw)
	if !isWebURL(raw) {
		return n.FallbackImage(t)
	}
	u, _ := url.Parse(raw)

	if direct, ok := imgurDirect(u); ok {
		return direct
	}
	return u.String()
}

// FallbackImage returns the configured placeholder for type t.
func (n *Normalizer) FallbackImage(t models.AdType) string {
	if t == models.AdTypeFullscreen {
		return n.cfg.FallbackFullscreenImage
	}
	return n.cfg.FallbackBannerImage
}

// Repair fills the fields of a stored record that predate validation.
func (n *Normalizer) Repair(t models.AdType, ad *models.Ad) {
	if ad.ImageURL == "" {
		ad.ImageURL = n.FallbackImage(t)
	} else {
		ad.ImageURL = n.FixImageURL(t, ad.ImageURL)
	}
	if ad.TargetURL == "" {
		ad.TargetURL = n.cfg.FallbackTargetURL
	}
}

// isWebURL reports whether s is an absolute http(s) URL with a host.
func isWebURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// imgurDirect maps https://imgur.com/abc to https://i.imgur.com/abc.png.
// Album and gallery links have no single image and are left alone.
func imgurDirect(u *url.URL) (string, bool) {
	host := strings.ToLower(u.Host)
	if host != "imgur.com" && host != "www.imgur.com" && host != "m.imgur.com" {
		return "", false
	}
	p := strings.Trim(u.Path, "/")
	if p == "" || strings.Contains(p, "/") {
		return "", false
	}
	if path.Ext(p) == "" {
		p += ".png"
	}
	return "https://i.imgur.com/" + p, true
}

func describe(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return invalid("%s is required", fe.Field())
	case "max":
		return invalid("%s must be at most %s characters", fe.Field(), fe.Param())
	case "weburl":
		return invalid("%s must be an absolute http(s) URL", fe.Field())
	default:
		return invalid("%s is invalid", fe.Field())
	}
}
