package storage

import (
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"bin-vision/internal/domain/port"
)

// ResultCache хранит размеченные изображения в памяти до истечения TTL.
// Это не хранилище результатов: после перезапуска или TTL данные пропадают.
type ResultCache struct {
	items *cache.Cache
}

// NewResultCache создаёт кэш с заданным временем жизни записей.
func NewResultCache(ttl time.Duration) *ResultCache {
	return &ResultCache{
		items: cache.New(ttl, 2*ttl),
	}
}

// Put сохраняет изображение и возвращает новый идентификатор.
func (c *ResultCache) Put(img image.Image) string {
	id := uuid.NewString()
	c.items.Set(id, img, cache.DefaultExpiration)
	return id
}

// Get возвращает изображение, если запись ещё жива.
func (c *ResultCache) Get(id string) (image.Image, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	v, ok := c.items.Get(id)
	if !ok {
		return nil, false
	}
	img, ok := v.(image.Image)
	return img, ok
}

// Len возвращает число живых записей.
func (c *ResultCache) Len() int {
	return c.items.ItemCount()
}

var _ port.ResultStore = (*ResultCache)(nil)
