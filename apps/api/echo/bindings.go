package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/homeroom/core"
)

var (
	orderingParam = "ordering"
	orderIndexKey = "\x00index"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// applyOrdering sorts items by their json fields. Without orderings, items are returned as is.
func applyOrdering[T any](items []T, ord Ordering) ([]T, error) {
	if len(ord.Orderings) == 0 || len(items) < 2 {
		return items, nil
	}

	docs := make([]core.Document, 0, len(items))
	for i, item := range items {
		doc, err := core.ToDocument(item)
		if err != nil {
			return nil, errors.Wrap(err, "converting to document")
		}
		doc[orderIndexKey] = i
		docs = append(docs, doc)
	}
	core.SortDocuments(docs, ord.Orderings)

	res := make([]T, 0, len(items))
	for _, doc := range docs {
		res = append(res, items[doc[orderIndexKey].(int)])
	}
	return res, nil
}

// bindOrdered binds the ordering query param and applies it to items.
func bindOrdered[T any](ctx echo.Context, items []T) ([]T, error) {
	ordering := new(Ordering)
	ordering.Bind(ctx)
	if items == nil {
		items = []T{}
	}
	return applyOrdering(items, *ordering)
}
