package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-sec/argus/internal/coded"
)

func TestMarshalCanonical_SortsKeysAndCompacts(t *testing.T) {
	data, err := MarshalCanonical(map[string]any{
		"b": []any{true, nil, "x"},
		"a": 1,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":[true,null,"x"]}`, string(data))
}

func TestDigest_KeyOrderInvariance(t *testing.T) {
	first, err := Digest(map[string]any{"a": "1", "b": "2"})
	require.NoError(t, err)

	second, err := Digest(map[string]any{"b": "2", "a": "1"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestDigest_GoldenValues(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{
			name:  "nested object",
			value: map[string]any{"a": 1, "b": []any{true, nil, "x"}},
			want:  "eca8cfb31ab74533e1eb2f4c74d2d55dfe3c79ac704787e54be8647ea7777eb1",
		},
		{
			name:  "empty object",
			value: map[string]any{},
			want:  "44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a",
		},
		{
			name:  "numbers",
			value: map[string]any{"n": 7, "f": 7.5},
			want:  "21e5d0f384d801687cca152f99ec67ddcddeb8011d34680fed3f911b440f8d52",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Digest(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDigest_UndefinedFieldIsDropped(t *testing.T) {
	base, err := Digest(map[string]any{"a": "1"})
	require.NoError(t, err)

	withUndefined, err := Digest(map[string]any{"a": "1", "note": Undefined})
	require.NoError(t, err)

	assert.Equal(t, base, withUndefined)

	// An explicit null is a different value and must change the digest.
	withNull, err := Digest(map[string]any{"a": "1", "note": nil})
	require.NoError(t, err)
	assert.NotEqual(t, base, withNull)
}

func TestCanonicalize_UndefinedCollapsesToNull(t *testing.T) {
	top, err := Canonicalize(Undefined)
	require.NoError(t, err)
	assert.Nil(t, top)

	arr, err := Canonicalize([]any{Undefined, "x"})
	require.NoError(t, err)
	assert.Equal(t, []any{nil, "x"}, arr)
}

func TestCanonicalize_Idempotent(t *testing.T) {
	input := map[string]any{
		"outer": map[string]any{"skip": Undefined, "keep": []any{Undefined}},
	}

	once, err := Canonicalize(input)
	require.NoError(t, err)

	twice, err := Canonicalize(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestDigest_ArrayOrderSignificant(t *testing.T) {
	first, err := Digest([]any{"a", "b"})
	require.NoError(t, err)

	second, err := Digest([]any{"b", "a"})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestDigest_RejectsUnrepresentableValues(t *testing.T) {
	_, err := Digest(map[string]any{"fn": func() {}})
	require.Error(t, err)
	assert.Equal(t, coded.CodeInvalidInput, coded.CodeOf(err))

	_, err = Digest(make(chan int))
	require.Error(t, err)
	assert.Equal(t, coded.CodeInvalidInput, coded.CodeOf(err))
}

func TestMarshalCanonical_EscapesMinimally(t *testing.T) {
	data, err := MarshalCanonical(map[string]any{"s": "a\"b\\c\nd<&>"})
	require.NoError(t, err)
	assert.Equal(t, `{"s":"a\"b\\c\nd<&>"}`, string(data))
}
