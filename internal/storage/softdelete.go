package storage

import "github.com/doug-martin/goqu/v9"

// ReadOptions controla o filtro padrão de soft delete. Registros inativos só
// aparecem quando o chamador pede explicitamente.
type ReadOptions struct {
	IncludeInactive bool
}

// ActiveOnly aplica o predicado active = TRUE, salvo IncludeInactive
func ActiveOnly(ds *goqu.SelectDataset, opts ReadOptions) *goqu.SelectDataset {
	if opts.IncludeInactive {
		return ds
	}
	return ds.Where(goqu.C("active").Eq(true))
}
