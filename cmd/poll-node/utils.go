package main

import "errors"

func errJoin(errs ...error) error {
	return errors.Join(errs...)
}
