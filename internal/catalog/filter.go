// Package catalog holds the public listing filter shared by the repo and tests.
package catalog

import (
	"strings"

	"github.com/Skotchmaster/farmconnect/internal/models"
)

const CategoryAll = "all"

type Filter struct {
	Category string
	Search   string
}

func NewFilter(category, search string) Filter {
	f := Filter{
		Category: strings.TrimSpace(category),
		Search:   strings.TrimSpace(search),
	}
	if strings.EqualFold(f.Category, CategoryAll) {
		f.Category = ""
	}
	return f
}

func (f Filter) HasCategory() bool { return f.Category != "" }

// Pattern is the LIKE argument for a case-insensitive substring match.
func (f Filter) Pattern() string {
	s := strings.ToLower(f.Search)
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}

func (f Filter) match(category, name string) bool {
	if f.HasCategory() && category != f.Category {
		return false
	}
	if f.Search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(f.Search))
}

func (f Filter) MatchProduct(p *models.Product) bool {
	return p.Listable() && f.match(p.Category, p.Name)
}

func (f Filter) MatchTool(t *models.Tool) bool {
	return t.Listable() && f.match(t.Category, t.Name)
}
