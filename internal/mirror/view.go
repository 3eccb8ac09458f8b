package mirror

import (
	"sync"

	"github.com/talkincode/shopsync/internal/domain"
)

// View is the screen currently showing mirror data
type View interface {
	DependsOn(kind domain.EntityKind) bool
	Render(kind domain.EntityKind)
}

type NopView struct{}

func (NopView) DependsOn(domain.EntityKind) bool { return false }
func (NopView) Render(domain.EntityKind)         {}

// Pages lists the collections each page shows
var Pages = map[string][]domain.EntityKind{
	"shop":           {domain.KindProduct},
	"track":          {domain.KindTracking},
	"admin":          {domain.KindProduct, domain.KindTracking, domain.KindOrder},
	"admin-products": {domain.KindProduct},
	"admin-tracking": {domain.KindTracking},
	"admin-orders":   {domain.KindOrder},
}

// RouteView renders the active page when one of its collections changes
type RouteView struct {
	mu     sync.RWMutex
	page   string
	render func(page string, kind domain.EntityKind)
}

func NewRouteView(page string, render func(page string, kind domain.EntityKind)) *RouteView {
	return &RouteView{page: page, render: render}
}

// Navigate switches the active page
func (v *RouteView) Navigate(page string) {
	v.mu.Lock()
	v.page = page
	v.mu.Unlock()
}

func (v *RouteView) Page() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.page
}

func (v *RouteView) DependsOn(kind domain.EntityKind) bool {
	for _, k := range Pages[v.Page()] {
		if k == kind {
			return true
		}
	}
	return false
}

func (v *RouteView) Render(kind domain.EntityKind) {
	if v.render != nil {
		v.render(v.Page(), kind)
	}
}
