// Package mocks provides centralized mock implementations for testing.
//
// Each mock has a function field per interface method. When the field is nil
// the mock falls back to a default response. Calls are counted under a mutex
// so mocks can be shared by concurrent workers.
//
//	engine := &mocks.MockEngine{
//	    DetectLabelsFn: func(ctx context.Context, image []byte) ([]domain.Label, error) {
//	        return nil, vision.ErrThrottled
//	    },
//	}
package mocks
