package pathbuilder

import (
	"librarian/internal/config"
	"librarian/internal/profile"
)

// Template is the naming configuration used to build destinations.
type Template struct {
	Root                string
	Format              string
	Custom              string
	SeriesGrouping      bool
	StandardizeInitials bool
	MinDepth            int
	VersionSimilarity   float64
}

// TemplateFromConfig snapshots the [naming] and [safety] settings.
func TemplateFromConfig(cfg *config.Config) Template {
	if cfg == nil {
		return Template{}
	}
	return Template{
		Root:                cfg.Paths.LibraryDir,
		Format:              cfg.Naming.Format,
		Custom:              cfg.Naming.CustomTemplate,
		SeriesGrouping:      cfg.Naming.SeriesGrouping,
		StandardizeInitials: cfg.Naming.StandardizeAuthorInitials,
		MinDepth:            cfg.Safety.MinDepth,
		VersionSimilarity:   cfg.Naming.VersionSimilarity,
	}
}

// EffectiveMinDepth is the minimum number of folders below the root a
// destination must have. The flat "author - title" layout is one level deep
// by construction.
func (t Template) EffectiveMinDepth() int {
	if t.Format == config.NamingAuthorDashTitle {
		return 1
	}
	return max(t.MinDepth, 1)
}

// Profile is the subset of a book profile the builder reads.
type Profile struct {
	Author    string
	Title     string
	Series    string
	SeriesNum string
	Narrator  string
	Year      string
	Language  string
	Edition   string
	Variant   string

	// Recording identifies the book's own files for version comparisons.
	Recording Recording
}

// FromBookProfile copies the resolved values out of p.
func FromBookProfile(p *profile.BookProfile) Profile {
	return Profile{
		Author:    p.Value(profile.FieldAuthor),
		Title:     p.Value(profile.FieldTitle),
		Series:    p.Value(profile.FieldSeries),
		SeriesNum: p.Value(profile.FieldSeriesNum),
		Narrator:  p.Value(profile.FieldNarrator),
		Year:      p.Value(profile.FieldYear),
		Language:  p.Value(profile.FieldLanguage),
		Edition:   p.Value(profile.FieldEdition),
		Variant:   p.Value(profile.FieldVariant),
	}
}
