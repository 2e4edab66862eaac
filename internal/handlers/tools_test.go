package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

type fieldBody struct {
	Value    string `json:"value"`
	Validate bool   `json:"validate,omitempty"`
}

func TestToolCatalogue(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rr := env.do(t, http.MethodGet, "/api/v1/tools", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	items := decodeBody(t, rr)["items"].([]any)
	require.Len(t, items, 3)
	require.Equal(t, "bmi", items[0].(map[string]any)["name"])

	rr = env.do(t, http.MethodGet, "/api/v1/tools/gpa", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	tool := decodeBody(t, rr)
	require.Len(t, tool["fields"], 9)

	rr = env.do(t, http.MethodGet, "/api/v1/tools/password", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "tool_not_found", decodeBody(t, rr)["error"])
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rr := env.do(t, http.MethodPost, "/api/v1/tools/bmi/sessions", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decodeBody(t, rr)
	id := created["id"].(string)
	require.NotEmpty(t, id)
	require.Equal(t, "/api/v1/sessions/"+id, rr.Header().Get("Location"))
	require.Equal(t, "idle", created["state"])

	base := "/api/v1/sessions/" + id

	rr = env.do(t, http.MethodPost, base+":submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	invalid := decodeBody(t, rr)
	require.Equal(t, "invalid", invalid["state"])
	require.NotEmpty(t, invalid["errors"])
	require.Nil(t, invalid["result"])

	for field, value := range map[string]string{"age": "30", "height_cm": "175", "weight": "70"} {
		rr = env.do(t, http.MethodPut, base+"/fields/"+field, fieldBody{Value: value})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, base+":submit", nil, "Accept-Language", "de-DE")
	require.Equal(t, http.StatusOK, rr.Code)
	done := decodeBody(t, rr)
	require.Equal(t, "complete", done["state"])
	result := done["result"].(map[string]any)
	require.Equal(t, 22.9, result["value"])
	require.Equal(t, "Normal weight", result["label"])
	formatted := done["formatted"].(map[string]any)
	require.Equal(t, "22,9", formatted["value"])
	require.Equal(t, "de", formatted["locale"])

	rr = env.do(t, http.MethodPost, base+":reset", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	reset := decodeBody(t, rr)
	require.Equal(t, "idle", reset["state"])
	require.Nil(t, reset["result"])
	require.Equal(t, "", reset["values"].(map[string]any)["weight"])

	rr = env.do(t, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	rr = env.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "session_not_found", decodeBody(t, rr)["error"])
}

func TestSessionFieldErrors(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rr := env.do(t, http.MethodPost, "/api/v1/tools/bmi/sessions", nil)
	id := decodeBody(t, rr)["id"].(string)
	base := "/api/v1/sessions/" + id

	rr = env.do(t, http.MethodPut, base+"/fields/shoe_size", fieldBody{Value: "42"})
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "unknown_field", decodeBody(t, rr)["error"])

	rr = env.do(t, http.MethodPut, base+"/fields/weight", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPut, base+"/fields/weight", map[string]any{"other": 1})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPut, base+"/fields/weight", fieldBody{Value: "abc", Validate: true})
	require.Equal(t, http.StatusOK, rr.Code)
	errs := decodeBody(t, rr)["errors"].([]any)
	require.Len(t, errs, 1)
	require.Equal(t, "weight", errs[0].(map[string]any)["field"])
	require.Equal(t, "not_a_number", errs[0].(map[string]any)["kind"])
}

func TestConverterSessionCategorySwitch(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rr := env.do(t, http.MethodPost, "/api/v1/tools/converter/sessions", nil)
	id := decodeBody(t, rr)["id"].(string)
	base := "/api/v1/sessions/" + id

	rr = env.do(t, http.MethodPut, base+"/fields/category", fieldBody{Value: "temperature"})
	require.Equal(t, http.StatusOK, rr.Code)
	values := decodeBody(t, rr)["values"].(map[string]any)
	require.Equal(t, "c", values["from"])
	require.Equal(t, "f", values["to"])

	env.do(t, http.MethodPut, base+"/fields/value", fieldBody{Value: "100"})
	rr = env.do(t, http.MethodPost, base+":submit", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	result := decodeBody(t, rr)["result"].(map[string]any)
	require.Equal(t, 212.0, result["value"])
	require.Equal(t, "f", result["unit"])
}
