package scraper

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// PageContent is what the structured extractor could read off the HTML.
// Title is always populated (worst case the caller-supplied fallback);
// Price is nil when no layer produced a valid candidate.
type PageContent struct {
	Title string
	Price *CandidatePrice
}

// PriceSelector is one entry of the ranked selector table. Site-specific
// selectors rank above generic patterns; SiteHint is documentation of where
// the selector was observed, not a dispatch key.
type PriceSelector struct {
	Selector string
	SiteHint string
}

// HTMLExtractor pulls product title/price/currency out of rendered HTML via
// three layers: embedded JSON-LD product schema, the ranked selector table,
// and price meta tags. It never escalates to OCR itself; that is the
// orchestrator's call.
type HTMLExtractor struct {
	parser         *PriceParser
	minTitleLength int
	selectors      []PriceSelector
	exclusions     []string
}

// NewHTMLExtractor wires the extractor to the shared price parser.
func NewHTMLExtractor(parser *PriceParser, minTitleLength int) *HTMLExtractor {
	return &HTMLExtractor{
		parser:         parser,
		minTitleLength: minTitleLength,
		selectors:      defaultPriceSelectors(),
		exclusions:     defaultExclusionPhrases(),
	}
}

// defaultPriceSelectors is the ranked table of price display elements across
// major e-commerce layouts. Order matters: specific beats generic.
func defaultPriceSelectors() []PriceSelector {
	return []PriceSelector{
		{".a-price .a-offscreen", "amazon"},
		{"#priceblock_ourprice", "amazon"},
		{"#priceblock_dealprice", "amazon"},
		{"div.Nx9bqj", "flipkart"},
		{"div._30jeq3", "flipkart"},
		{".pdp-price strong", "myntra"},
		{".price__current", "shopify"},
		{".price-item--regular", "shopify"},
		{"[data-price]", ""},
		{"[data-testid*='price']", ""},
		{".product-price", ""},
		{".current-price", ""},
		{".sale-price", ""},
		{".price", ""},
		{"[class*='price']", ""},
		{"[id*='price']", ""},
	}
}

// defaultExclusionPhrases disqualify a numerically valid match when they
// appear in the element or its ancestors: shipping thresholds, promo banners
// and ratings all contain numbers that are not the product price.
func defaultExclusionPhrases() []string {
	return []string{
		"orders above",
		"orders over",
		"minimum purchase",
		"free shipping",
		"free delivery",
		"save",
		"% off",
		"coupon",
		"promo",
		"cashback",
		"quantity",
		"star",
		"rating",
		"emi",
		"exchange",
		"delivery by",
	}
}

// ExtractContent parses html and resolves title and price per the layer
// ordering. fallbackTitle (usually the site name) is the end of the title
// chain.
func (e *HTMLExtractor) ExtractContent(html, fallbackTitle string) PageContent {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.Warn().Err(err).Msg("extract: html parse failed")
		return PageContent{Title: fallbackTitle}
	}

	content := PageContent{
		Title: e.resolveTitle(doc, fallbackTitle),
	}

	if candidate, ok := e.priceFromStructuredData(doc); ok {
		content.Price = &candidate
	} else if candidate, ok := e.priceFromSelectors(doc); ok {
		content.Price = &candidate
	} else if candidate, ok := e.priceFromMetaTags(doc); ok {
		content.Price = &candidate
	}

	return content
}

// resolveTitle walks the fallback chain: first non-trivial h1, JSON-LD
// product name, og:title, <title>, then the caller's fallback.
func (e *HTMLExtractor) resolveTitle(doc *goquery.Document, fallback string) string {
	var title string
	doc.Find("h1").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := e.usableTitle(s.Text()); t != "" {
			title = t
			return false
		}
		return true
	})
	if title != "" {
		return title
	}

	if name := e.structuredDataName(doc); name != "" {
		return name
	}

	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if t := e.usableTitle(og); t != "" {
			return t
		}
	}

	if t := e.usableTitle(doc.Find("title").First().Text()); t != "" {
		return t
	}

	return fallback
}

func (e *HTMLExtractor) usableTitle(raw string) string {
	t := strings.Join(strings.Fields(raw), " ")
	if len(t) <= e.minTitleLength {
		return ""
	}
	return t
}

// schemaKind is the discriminated interpretation of a JSON-LD node.
type schemaKind int

const (
	schemaOther schemaKind = iota
	schemaProduct
	schemaProductGroup
)

// classifySchema interprets a JSON-LD node's @type, which may be a string or
// a list of strings.
func classifySchema(node map[string]any) schemaKind {
	var types []string
	switch t := node["@type"].(type) {
	case string:
		types = []string{t}
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok {
				types = append(types, s)
			}
		}
	}
	for _, t := range types {
		switch t {
		case "Product":
			return schemaProduct
		case "ProductGroup":
			return schemaProductGroup
		}
	}
	return schemaOther
}

// priceFromStructuredData scans every ld+json block for a Product (or a
// ProductGroup's first variant) and reads price/currency straight off its
// offer. Malformed blocks are skipped, not fatal: sites routinely ship
// broken JSON-LD next to valid blocks.
func (e *HTMLExtractor) priceFromStructuredData(doc *goquery.Document) (CandidatePrice, bool) {
	var result CandidatePrice
	found := false

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, node := range decodeJSONLD(s.Text()) {
			product, ok := productNode(node)
			if !ok {
				continue
			}
			offer, ok := firstOffer(product)
			if !ok {
				continue
			}
			amount, ok := offerPrice(offer)
			if !ok || !e.parser.Valid(amount) {
				continue
			}
			currency, _ := offer["priceCurrency"].(string)
			result = CandidatePrice{Amount: amount, Currency: currency, Source: SourceStructuredData}
			found = true
			return false
		}
		return true
	})

	return result, found
}

// structuredDataName returns the first Product name in any ld+json block.
func (e *HTMLExtractor) structuredDataName(doc *goquery.Document) string {
	var name string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, node := range decodeJSONLD(s.Text()) {
			if product, ok := productNode(node); ok {
				if n := e.usableTitle(stringField(product, "name")); n != "" {
					name = n
					return false
				}
			}
		}
		return true
	})
	return name
}

// decodeJSONLD tolerantly parses one script block into candidate nodes,
// flattening top-level arrays and @graph containers.
func decodeJSONLD(raw string) []map[string]any {
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil
	}

	var nodes []map[string]any
	var collect func(v any)
	collect = func(v any) {
		switch n := v.(type) {
		case map[string]any:
			nodes = append(nodes, n)
			if graph, ok := n["@graph"].([]any); ok {
				for _, g := range graph {
					collect(g)
				}
			}
		case []any:
			for _, item := range n {
				collect(item)
			}
		}
	}
	collect(parsed)
	return nodes
}

// productNode resolves a node to the Product carrying the offer: a Product
// directly, or a ProductGroup's first variant.
func productNode(node map[string]any) (map[string]any, bool) {
	switch classifySchema(node) {
	case schemaProduct:
		return node, true
	case schemaProductGroup:
		if variants, ok := node["hasVariant"].([]any); ok {
			for _, v := range variants {
				if variant, ok := v.(map[string]any); ok {
					return variant, true
				}
			}
		}
	}
	return nil, false
}

// firstOffer returns the node's offer: the first element of an offer array,
// or the singular offer object.
func firstOffer(product map[string]any) (map[string]any, bool) {
	switch offers := product["offers"].(type) {
	case map[string]any:
		return offers, true
	case []any:
		for _, o := range offers {
			if offer, ok := o.(map[string]any); ok {
				return offer, true
			}
		}
	}
	return nil, false
}

// offerPrice reads the numeric price, which schema publishers emit either as
// a JSON number or a string.
func offerPrice(offer map[string]any) (float64, bool) {
	switch price := offer["price"].(type) {
	case float64:
		return price, price > 0
	case string:
		cleaned := normalizeNumeric(price)
		if cleaned == "" {
			return 0, false
		}
		amount, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return amount, amount > 0
	}
	return 0, false
}

func stringField(node map[string]any, key string) string {
	s, _ := node[key].(string)
	return s
}

// priceFromSelectors walks the ranked selector table and accepts the first
// match that parses and is not disqualified by its surrounding context.
func (e *HTMLExtractor) priceFromSelectors(doc *goquery.Document) (CandidatePrice, bool) {
	var result CandidatePrice
	found := false

	for _, entry := range e.selectors {
		doc.Find(entry.Selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if text == "" {
				if v, ok := s.Attr("data-price"); ok {
					text = v
				}
			}
			if text == "" || e.inExcludedContext(s, text) {
				return true
			}
			candidate, ok := e.parser.Parse(text)
			if !ok {
				return true
			}
			candidate.Source = SourceSelector
			result = candidate
			found = true
			return false
		})
		if found {
			return result, true
		}
	}
	return CandidatePrice{}, false
}

// inExcludedContext checks the element's own text and two ancestor levels
// for disqualifying phrases. Ancestor text is capped so a match near the
// page root does not drag the whole document into the check.
func (e *HTMLExtractor) inExcludedContext(s *goquery.Selection, ownText string) bool {
	context := strings.ToLower(ownText)
	ancestor := s.Parent()
	for depth := 0; depth < 2 && ancestor.Length() > 0; depth++ {
		t := strings.ToLower(strings.TrimSpace(ancestor.Text()))
		if len(t) > 300 {
			t = t[:300]
		}
		context += " " + t
		ancestor = ancestor.Parent()
	}

	for _, phrase := range e.exclusions {
		if strings.Contains(context, phrase) {
			return true
		}
	}
	return false
}

// priceFromMetaTags is the last structured resort: explicit price/currency
// meta properties.
func (e *HTMLExtractor) priceFromMetaTags(doc *goquery.Document) (CandidatePrice, bool) {
	priceMetas := []string{
		`meta[property="product:price:amount"]`,
		`meta[property="og:price:amount"]`,
		`meta[itemprop="price"]`,
	}
	currencyMetas := []string{
		`meta[property="product:price:currency"]`,
		`meta[property="og:price:currency"]`,
		`meta[itemprop="priceCurrency"]`,
	}

	for _, sel := range priceMetas {
		content, ok := doc.Find(sel).Attr("content")
		if !ok {
			continue
		}
		candidate, ok := e.parser.Parse(content)
		if !ok {
			continue
		}
		candidate.Source = SourceMeta
		if candidate.Currency == "" {
			for _, csel := range currencyMetas {
				if code, ok := doc.Find(csel).Attr("content"); ok && code != "" {
					candidate.Currency = strings.ToUpper(strings.TrimSpace(code))
					break
				}
			}
		}
		return candidate, true
	}
	return CandidatePrice{}, false
}
