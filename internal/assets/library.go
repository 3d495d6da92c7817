// internal/assets/library.go
package assets

import (
	"github.com/90n9/talepick/internal/models"
)

// Library owns the asset list of one story.
type Library struct {
	assets []models.Asset
}

// NewLibrary copies the given assets into a new library.
func NewLibrary(assets []models.Asset) *Library {
	l := &Library{assets: make([]models.Asset, len(assets))}
	copy(l.assets, assets)
	return l
}

// List returns a copy of all assets in upload order.
func (l *Library) List() []models.Asset {
	out := make([]models.Asset, len(l.assets))
	copy(out, l.assets)
	return out
}

// Len returns the number of assets.
func (l *Library) Len() int {
	return len(l.assets)
}

// Add appends an asset. An asset with an id already present replaces it.
func (l *Library) Add(a models.Asset) {
	if i := l.indexOf(a.ID); i >= 0 {
		l.assets[i] = a
		return
	}
	l.assets = append(l.assets, a)
}

// Find looks an asset up by id.
func (l *Library) Find(id string) (models.Asset, bool) {
	if i := l.indexOf(id); i >= 0 {
		return l.assets[i], true
	}
	return models.Asset{}, false
}

// FindByURL looks an asset up by its reference string.
func (l *Library) FindByURL(url string) (models.Asset, bool) {
	for _, a := range l.assets {
		if a.URL == url {
			return a, true
		}
	}
	return models.Asset{}, false
}

// Remove deletes an asset by id.
func (l *Library) Remove(id string) (models.Asset, bool) {
	i := l.indexOf(id)
	if i < 0 {
		return models.Asset{}, false
	}
	removed := l.assets[i]
	l.assets = append(l.assets[:i], l.assets[i+1:]...)
	return removed, true
}

func (l *Library) indexOf(id string) int {
	for i := range l.assets {
		if l.assets[i].ID == id {
			return i
		}
	}
	return -1
}
