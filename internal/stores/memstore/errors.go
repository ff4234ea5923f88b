package memstore

import "fmt"

func errDuplicate(table, key string) error {
	return fmt.Errorf("memstore: duplicate key %s in %s", key, table)
}

func errMissingParent(table, orderID string) error {
	return fmt.Errorf("memstore: %s references missing order %s", table, orderID)
}
