package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafeQuery(t *testing.T) {
	fallback := []string{"sample"}

	testCases := []struct {
		name                 string
		query                func(ctx context.Context) ([]string, error)
		expectedData         []string
		expectedUsedFallback bool
		expectedErr          error
	}{
		{
			name:         "Success",
			query:        func(ctx context.Context) ([]string, error) { return []string{"live"}, nil },
			expectedData: []string{"live"},
		},
		{
			name:                 "SuccessWithEmptyData",
			query:                func(ctx context.Context) ([]string, error) { return []string{}, nil },
			expectedData:         []string{},
			expectedUsedFallback: false,
		},
		{
			name:                 "ErrorIndicator",
			query:                func(ctx context.Context) ([]string, error) { return nil, errFetch },
			expectedData:         fallback,
			expectedUsedFallback: true,
			expectedErr:          errFetch,
		},
		{
			name:                 "Panic",
			query:                func(ctx context.Context) ([]string, error) { panic("boom") },
			expectedData:         fallback,
			expectedUsedFallback: true,
			expectedErr:          ErrQueryPanicked,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			outcome := SafeQuery(context.Background(), newTestLogger(), testCase.query, fallback)
			assert.Equal(testCase.expectedData, outcome.Data)
			assert.Equal(testCase.expectedUsedFallback, outcome.UsedFallback)
			if testCase.expectedErr == nil {
				assert.NoError(outcome.Err)
			} else {
				assert.True(errors.Is(outcome.Err, testCase.expectedErr))
			}
		})
	}
}
