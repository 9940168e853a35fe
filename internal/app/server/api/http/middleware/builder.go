package middleware

import (
	"github.com/danielgtaylor/huma/v2"
)

// Container собирает цепочку мидлварей для очередного обработчика
type Container struct {
	chain huma.Middlewares
}

func NewContainer() *Container {
	return &Container{}
}

// Add дописывает мидлвари в конец цепочки
func (c *Container) Add(mws ...func(ctx huma.Context, next func(huma.Context))) *Container {
	c.chain = append(c.chain, mws...)
	return c
}

// Take отдает накопленную цепочку и начинает новую
func (c *Container) Take() huma.Middlewares {
	chain := c.chain
	c.chain = nil
	return chain
}
