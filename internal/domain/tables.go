package domain

// Tables are migrated by the sql store. Orders use a row type owned by the store.
var Tables = []interface{}{
	&Product{},
	&Tracking{},
}
