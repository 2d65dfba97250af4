package tetherdb

import "context"

// Tether wraps fn so that every call writes its result to s and returns the new id.
// The result must be a map with string keys.
//
//	record := tetherdb.Tether(store, readSensor)
//	id, err := record(ctx)
func Tether[T any](s *Store, fn func(ctx context.Context) (T, error), opts ...WriteOption) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		doc, err := fn(ctx)
		if err != nil {
			return "", err
		}
		return s.Write(ctx, doc, opts...)
	}
}

// TetherWith is Tether with a store opened by open for each call and closed afterwards.
// fn runs before the store is opened.
func TetherWith[T any](open func() (*Store, error), fn func(ctx context.Context) (T, error), opts ...WriteOption) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (id string, err error) {
		doc, err := fn(ctx)
		if err != nil {
			return "", err
		}

		s, err := open()
		if err != nil {
			return "", err
		}
		defer func() {
			if cerr := s.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		return s.Write(ctx, doc, opts...)
	}
}

// OpenFunc returns a store factory for TetherWith that opens cfg.
func OpenFunc(cfg Config, opts ...Option) func() (*Store, error) {
	return func() (*Store, error) {
		return Open(cfg, opts...)
	}
}
