package assets

// Category is a logical asset kind. Each has exactly one source glob and one destination.
type Category string

const (
	Markup        Category = "markup"
	Styles        Category = "styles"
	Scripts       Category = "scripts"
	Fonts         Category = "fonts"
	RasterImages  Category = "images"
	VectorSprites Category = "sprites"
)

// AllCategories returns every category in declaration order.
func AllCategories() []Category {
	return []Category{Markup, Styles, Scripts, Fonts, RasterImages, VectorSprites}
}

func (c Category) String() string { return string(c) }
