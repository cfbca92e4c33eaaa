// Package catalog defines the persisted catalog document and the helpers
// that read, write, back up and export it.
//
// The document is read once per run, rebuilt in memory, and replaced as a
// whole. Nothing in this package mutates a file in place.
package catalog

// Catalog is the single unit of persistence.
type Catalog struct {
	Collections []Collection `json:"collections"`
	Brands      []Brand      `json:"brands"`
	Products    []Product    `json:"products"`
}

// Brand is keyed by Handle across the whole catalog.
type Brand struct {
	Handle string `json:"handle"`
	Name   string `json:"name"`
}

// Collection is keyed by Handle across the whole catalog.
type Collection struct {
	Handle      string `json:"handle"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// MediaItem references one uploaded asset. Path is the remote asset id.
type MediaItem struct {
	Type    string `json:"type"`
	Path    string `json:"path"`
	AltText string `json:"altText,omitempty"`
}

// MediaTypeImage is the only media type the pipeline produces.
const MediaTypeImage = "image"

// Product is one catalog entry. Slug and ID are each unique in a catalog.
type Product struct {
	ID             string      `json:"id"`
	Slug           string      `json:"slug"`
	Title          string      `json:"title"`
	Brand          string      `json:"brand"`
	Collection     string      `json:"collection"`
	Price          int64       `json:"price"`
	CompareAtPrice *int64      `json:"compareAtPrice,omitempty"`
	Deposit        int64       `json:"deposit"`
	Stock          int64       `json:"stock"`
	ForSale        bool        `json:"forSale"`
	ForRental      bool        `json:"forRental"`
	Media          []MediaItem `json:"media"`
	Sizes          []string    `json:"sizes"`
	Description    string      `json:"description"`
	CreatedAt      string      `json:"createdAt"`
	Popularity     int64       `json:"popularity"`
	Taxonomy       Taxonomy    `json:"taxonomy"`
	Details        *Details    `json:"details,omitempty"`

	rounded []string
}

// Taxonomy holds the browse facets of a product. The first five fields are
// always present; the rest apply to particular categories.
type Taxonomy struct {
	Department  string   `json:"department"`
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	Color       []string `json:"color"`
	Material    []string `json:"material"`

	// apparel
	Fit          string   `json:"fit,omitempty"`
	Length       string   `json:"length,omitempty"`
	Neckline     string   `json:"neckline,omitempty"`
	SleeveLength string   `json:"sleeveLength,omitempty"`
	Pattern      string   `json:"pattern,omitempty"`
	Occasion     []string `json:"occasion,omitempty"`
	SizeClass    string   `json:"sizeClass,omitempty"`

	// bags and jewelry
	StrapStyle    string   `json:"strapStyle,omitempty"`
	HardwareColor string   `json:"hardwareColor,omitempty"`
	ClosureType   string   `json:"closureType,omitempty"`
	Fits          []string `json:"fits,omitempty"`
	Metal         string   `json:"metal,omitempty"`
	Gemstone      string   `json:"gemstone,omitempty"`
	JewelrySize   string   `json:"jewelrySize,omitempty"`
	JewelryStyle  string   `json:"jewelryStyle,omitempty"`
	JewelryTier   string   `json:"jewelryTier,omitempty"`
}

// Details holds optional editorial copy.
type Details struct {
	ModelHeight string   `json:"modelHeight,omitempty"`
	ModelSize   string   `json:"modelSize,omitempty"`
	FitNote     string   `json:"fitNote,omitempty"`
	FabricFeel  string   `json:"fabricFeel,omitempty"`
	Care        string   `json:"care,omitempty"`
	Dimensions  string   `json:"dimensions,omitempty"`
	StrapDrop   string   `json:"strapDrop,omitempty"`
	WhatFits    []string `json:"whatFits,omitempty"`
	Interior    []string `json:"interior,omitempty"`
	SizeGuide   string   `json:"sizeGuide,omitempty"`
	Warranty    string   `json:"warranty,omitempty"`
}

// IsZero reports whether every field of d is empty.
func (d *Details) IsZero() bool {
	if d == nil {
		return true
	}
	return d.ModelHeight == "" && d.ModelSize == "" && d.FitNote == "" &&
		d.FabricFeel == "" && d.Care == "" && d.Dimensions == "" &&
		d.StrapDrop == "" && len(d.WhatFits) == 0 && len(d.Interior) == 0 &&
		d.SizeGuide == "" && d.Warranty == ""
}

// MediaMap is the output of the upload step: ordered media per product slug.
type MediaMap struct {
	MediaByProduct map[string][]MediaItem `json:"mediaByProduct"`
}

// MediaIndex records which local file became which catalog asset.
type MediaIndex struct {
	GeneratedAt  string           `json:"generatedAt"`
	ProductsPath string           `json:"productsPath"`
	Totals       MediaIndexTotals `json:"totals"`
	Items        []MediaIndexItem `json:"items"`
}

// MediaIndexTotals summarises a MediaIndex.
type MediaIndexTotals struct {
	Products int `json:"products"`
	Media    int `json:"media"`
	Warnings int `json:"warnings"`
}

// MediaIndexItem is one source file and the asset it produced.
type MediaIndexItem struct {
	ProductSlug string `json:"productSlug"`
	SourcePath  string `json:"sourcePath"`
	CatalogPath string `json:"catalogPath"`
	AltText     string `json:"altText"`
}
