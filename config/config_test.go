package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/tilerender/memutils"
)

func TestDefault(t *testing.T) {
	options := Default()
	require.NoError(t, options.Validate())
	require.Equal(t, 4096, options.Stream.Budget)
	require.Equal(t, 16, options.Stream.SmallCapacity)
	require.True(t, options.Composer.Indirect)
	require.False(t, options.Allocator.ExternallySynchronized)
}

func TestParse(t *testing.T) {
	testCases := map[string]struct {
		Document string

		Expected      func(options *Options)
		ExpectedError bool
	}{
		"Empty": {
			Document: ``,
			Expected: func(options *Options) {},
		},
		"PartialSection": {
			Document: `
[stream]
small_capacity = 32
`,
			Expected: func(options *Options) {
				options.Stream.SmallCapacity = 32
			},
		},
		"AllSections": {
			Document: `
[allocator]
externally_synchronized = true

[stream]
budget = 8192
small_capacity = 8

[composer]
indirect = false
indirect_budget = 1024
`,
			Expected: func(options *Options) {
				options.Allocator.ExternallySynchronized = true
				options.Stream.Budget = 8192
				options.Stream.SmallCapacity = 8
				options.Composer.Indirect = false
				options.Composer.IndirectBudget = 1024
			},
		},
		"UnknownKey": {
			Document: `
[stream]
capacity = 16
`,
			ExpectedError: true,
		},
		"Malformed": {
			Document:      `[stream`,
			ExpectedError: true,
		},
		"NegativeBudget": {
			Document: `
[stream]
budget = -1
`,
			ExpectedError: true,
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			options, err := Parse([]byte(testCase.Document))
			if testCase.ExpectedError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			expected := Default()
			testCase.Expected(&expected)
			require.Equal(t, expected, options)
		})
	}
}

func TestParse_SmallCapacityPowerOfTwo(t *testing.T) {
	_, err := Parse([]byte("[stream]\nsmall_capacity = 12\n"))
	require.Error(t, err)
	require.True(t, errors.Is(err, memutils.PowerOfTwoError))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "render.toml")
	require.NoError(t, os.WriteFile(path, []byte("[composer]\nindirect = false\n"), 0o600))

	options, err := Load(path)
	require.NoError(t, err)
	require.False(t, options.Composer.Indirect)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestEncode_RoundTrip(t *testing.T) {
	options := Default()
	options.Stream.Budget = 2048
	options.Allocator.ExternallySynchronized = true

	data, err := options.Encode()
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, options, parsed)
}
