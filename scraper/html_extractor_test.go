package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lootlook/config"
)

func newTestHTMLExtractor() *HTMLExtractor {
	return NewHTMLExtractor(NewPriceParser(config.DefaultCurrencyTable(), 10), 3)
}

func TestExtractContentStructuredData(t *testing.T) {
	e := newTestHTMLExtractor()

	html := `<html><head>
		<script type="application/ld+json">
		{"@context":"https://schema.org","@type":"Product","name":"Wireless Headphones",
		 "offers":{"@type":"Offer","price":"1,499.00","priceCurrency":"INR"}}
		</script>
	</head><body><h1>Wireless Headphones</h1></body></html>`

	content := e.ExtractContent(html, "example.com")
	require.NotNil(t, content.Price)
	assert.InDelta(t, 1499, content.Price.Amount, 0.001)
	assert.Equal(t, "INR", content.Price.Currency)
	assert.Equal(t, SourceStructuredData, content.Price.Source)
	assert.Equal(t, "Wireless Headphones", content.Title)
}

func TestExtractContentProductGroupVariant(t *testing.T) {
	e := newTestHTMLExtractor()

	html := `<html><head>
		<script type="application/ld+json">
		{"@type":"ProductGroup","name":"Sneakers",
		 "hasVariant":[{"@type":"Product","name":"Sneakers Size 9",
			"offers":[{"@type":"Offer","price":2999,"priceCurrency":"USD"}]}]}
		</script>
	</head><body></body></html>`

	content := e.ExtractContent(html, "example.com")
	require.NotNil(t, content.Price)
	assert.InDelta(t, 2999, content.Price.Amount, 0.001)
	assert.Equal(t, "USD", content.Price.Currency)
}

func TestExtractContentSkipsBrokenJSONLD(t *testing.T) {
	e := newTestHTMLExtractor()

	html := `<html><head>
		<script type="application/ld+json">{not valid json</script>
		<script type="application/ld+json">
		{"@type":"BreadcrumbList","itemListElement":[]}
		</script>
		<script type="application/ld+json">
		{"@graph":[{"@type":"Product","name":"Desk Lamp",
		 "offers":{"price":"899","priceCurrency":"INR"}}]}
		</script>
	</head><body></body></html>`

	content := e.ExtractContent(html, "example.com")
	require.NotNil(t, content.Price)
	assert.InDelta(t, 899, content.Price.Amount, 0.001)
}

func TestExtractContentSelectorTable(t *testing.T) {
	e := newTestHTMLExtractor()

	html := `<html><body>
		<h1>Mechanical Keyboard</h1>
		<div class="a-price"><span class="a-offscreen">₹4,599.00</span></div>
	</body></html>`

	content := e.ExtractContent(html, "example.com")
	require.NotNil(t, content.Price)
	assert.InDelta(t, 4599, content.Price.Amount, 0.001)
	assert.Equal(t, "INR", content.Price.Currency)
	assert.Equal(t, SourceSelector, content.Price.Source)
}

func TestExtractContentSelectorExclusion(t *testing.T) {
	e := newTestHTMLExtractor()

	// The only selector match sits inside a shipping banner, so it must be
	// rejected rather than mistaken for the product price.
	html := `<html><body>
		<div class="banner">Free shipping on orders above <span class="price">₹500</span></div>
	</body></html>`

	content := e.ExtractContent(html, "example.com")
	assert.Nil(t, content.Price)
}

func TestExtractContentSelectorExclusionDoesNotBlockRealPrice(t *testing.T) {
	e := newTestHTMLExtractor()

	html := `<html><body>
		<div class="banner">Free shipping on orders above <span class="note">₹500</span></div>
		<div class="main"><div class="pdp"><div class="product-price">₹2,199</div></div></div>
	</body></html>`

	content := e.ExtractContent(html, "example.com")
	require.NotNil(t, content.Price)
	assert.InDelta(t, 2199, content.Price.Amount, 0.001)
}

func TestExtractContentMetaFallback(t *testing.T) {
	e := newTestHTMLExtractor()

	html := `<html><head>
		<meta property="product:price:amount" content="1299.00">
		<meta property="product:price:currency" content="inr">
	</head><body></body></html>`

	content := e.ExtractContent(html, "example.com")
	require.NotNil(t, content.Price)
	assert.InDelta(t, 1299, content.Price.Amount, 0.001)
	assert.Equal(t, "INR", content.Price.Currency)
	assert.Equal(t, SourceMeta, content.Price.Source)
}

func TestResolveTitleChain(t *testing.T) {
	e := newTestHTMLExtractor()

	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"h1 wins",
			`<html><head><title>Shop | Item</title></head><body><h1>Ceramic Mug Set</h1></body></html>`,
			"Ceramic Mug Set",
		},
		{
			"short h1 skipped, og:title used",
			`<html><head><meta property="og:title" content="Ceramic Mug Set"></head><body><h1>..</h1></body></html>`,
			"Ceramic Mug Set",
		},
		{
			"title tag fallback",
			`<html><head><title>Ceramic Mug Set</title></head><body></body></html>`,
			"Ceramic Mug Set",
		},
		{
			"site fallback",
			`<html><body></body></html>`,
			"example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := e.ExtractContent(tt.html, "example.com")
			assert.Equal(t, tt.want, content.Title)
		})
	}
}

func TestExtractContentInvalidHTMLStillReturnsTitle(t *testing.T) {
	e := newTestHTMLExtractor()

	content := e.ExtractContent("", "example.com")
	assert.Equal(t, "example.com", content.Title)
	assert.Nil(t, content.Price)
}
