package webdriver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementRef_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(ElementRef{ID: "abc-123"})
	require.NoError(t, err)
	assert.Equal(t, `{"element-6066-11e4-a52e-4f735466cecf":"abc-123"}`, string(data))

	elem := &Element{id: "abc-123"}
	data, err = json.Marshal(elem)
	require.NoError(t, err)
	assert.Equal(t, `{"element-6066-11e4-a52e-4f735466cecf":"abc-123"}`, string(data))

	data, err = json.Marshal([]interface{}{1, elem, "x"})
	require.NoError(t, err)
	assert.Equal(t, `[1,{"element-6066-11e4-a52e-4f735466cecf":"abc-123"},"x"]`, string(data))
}

func TestParseElementRef(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "w3c key", raw: `{"element-6066-11e4-a52e-4f735466cecf":"e1"}`, want: "e1"},
		{name: "legacy key", raw: `{"ELEMENT":"e2"}`, want: "e2"},
		{name: "w3c key wins", raw: `{"ELEMENT":"old","element-6066-11e4-a52e-4f735466cecf":"new"}`, want: "new"},
		{name: "other object", raw: `{"foo":"bar"}`, wantErr: true},
		{name: "non-string id", raw: `{"element-6066-11e4-a52e-4f735466cecf":5}`, wantErr: true},
		{name: "string", raw: `"e1"`, wantErr: true},
		{name: "null", raw: `null`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseElementRef(json.RawMessage(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsKind(err, KindSerialization), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ref.ID)
		})
	}
}

func TestElementsFromRaw(t *testing.T) {
	s := &Session{}
	bc := BrowsingContext{Window: "w1", Frames: []string{"index:0"}}

	elems, err := s.elementsFromRaw(cmdFindElements, json.RawMessage(`[
		{"element-6066-11e4-a52e-4f735466cecf":"a"},
		{"ELEMENT":"b"}
	]`), bc)
	require.NoError(t, err)
	require.Len(t, elems, 2)
	assert.Equal(t, "a", elems[0].ID())
	assert.Equal(t, "b", elems[1].ID())
	assert.Equal(t, "w1/index:0", elems[1].Context().Key())

	elems, err = s.elementsFromRaw(cmdFindElements, json.RawMessage(`[]`), bc)
	require.NoError(t, err)
	assert.NotNil(t, elems)
	assert.Empty(t, elems)

	_, err = s.elementsFromRaw(cmdFindElements, json.RawMessage(`[{"foo":1}]`), bc)
	assert.True(t, IsKind(err, KindSerialization))
}

func TestBrowsingContext(t *testing.T) {
	top := BrowsingContext{Window: "w1"}
	assert.Equal(t, "w1", top.Key())
	assert.Equal(t, 1, top.Depth())
	assert.Equal(t, top.Key(), BrowsingContext{Window: "w1", Frames: []string{}}.Key())

	nested := BrowsingContext{Window: "w1", Frames: []string{"index:0", "element:e9"}}
	assert.Equal(t, "w1/index:0/element:e9", nested.Key())
	assert.Equal(t, 3, nested.Depth())
	assert.NotEqual(t, top.Key(), nested.Key())

	assert.Equal(t, "<no window>", BrowsingContext{}.String())
}
