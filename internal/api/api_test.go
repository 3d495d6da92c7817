// internal/api/api_test.go
package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/90n9/talepick/internal/app"
	"github.com/90n9/talepick/internal/config"
	"github.com/90n9/talepick/internal/di"
	"github.com/90n9/talepick/internal/editor"
	"github.com/90n9/talepick/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Message string          `json:"message"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	c      *di.Container
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.AppConfig{
		DataDir:          filepath.Join(dir, "data"),
		StaticDir:        filepath.Join(dir, "static"),
		TextFormat:       "json",
		PlaceholderImage: "/static/placeholder.png",
		LLMProvider:      "openai",
		LLMConfig:        map[string]string{},
	}
	c := di.NewContainer()
	if err := app.InitServicesInto(c, cfg); err != nil {
		t.Fatal(err)
	}
	r, err := SetupRouter(c, cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { app.Shutdown(c) })
	return &testServer{t: t, router: r, c: c}
}

func (s *testServer) call(method, path string, body interface{}) (int, envelope) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return s.serve(req)
}

func (s *testServer) serve(req *http.Request) (int, envelope) {
	s.t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		s.t.Fatalf("%s %s: bad body %q", req.Method, req.URL, w.Body.String())
	}
	return w.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode %s: %v", env.Data, err)
	}
	return out
}

func (s *testServer) createStory(title string) string {
	s.t.Helper()
	code, env := s.call(http.MethodPost, "/api/stories", gin.H{"title": title})
	if code != http.StatusCreated {
		s.t.Fatalf("create story: %d %+v", code, env.Error)
	}
	return decode[struct {
		ID string `json:"id"`
	}](s.t, env).ID
}

func (s *testServer) addScene(storyID string) string {
	s.t.Helper()
	code, env := s.call(http.MethodPost, "/api/stories/"+storyID+"/scenes", nil)
	if code != http.StatusCreated {
		s.t.Fatalf("add scene: %d %+v", code, env.Error)
	}
	return decode[struct {
		ID string `json:"id"`
	}](s.t, env).ID
}

func TestEditScanAndSave(t *testing.T) {
	s := newTestServer(t)
	id := s.createStory("Night Train")
	base := "/api/stories/" + id

	first := s.addScene(id)
	second := s.addScene(id)

	code, env := s.call(http.MethodPost, base+"/scenes/"+first+"/choices", nil)
	if code != http.StatusCreated {
		t.Fatalf("add choice: %d", code)
	}
	choiceID := decode[struct {
		ID string `json:"id"`
	}](t, env).ID

	code, _ = s.call(http.MethodPatch, base+"/scenes/"+first+"/choices/"+choiceID,
		gin.H{"text": "Board", "target_scene_id": second})
	if code != http.StatusOK {
		t.Fatalf("patch choice: %d", code)
	}
	if code, _ = s.call(http.MethodPatch, base+"/scenes/"+second, gin.H{"is_ending": true}); code != http.StatusOK {
		t.Fatalf("patch scene: %d", code)
	}

	code, env = s.call(http.MethodPost, base+"/scan", nil)
	if code != http.StatusOK {
		t.Fatalf("scan: %d", code)
	}
	scan := decode[struct {
		Summary struct {
			Total int `json:"total"`
		} `json:"summary"`
	}](t, env)
	// 两个场景都没有片段，各报告一次缺图；second 是结局，不算死路
	if scan.Summary.Total != 2 {
		t.Fatalf("expected two issues, got %s", env.Data)
	}

	if code, env = s.call(http.MethodPost, base+"/save", nil); code != http.StatusOK {
		t.Fatalf("save: %d %+v", code, env.Error)
	}

	// 关闭会话后重新打开，应读到保存的内容
	s.call(http.MethodDelete, base+"/session", nil)
	code, env = s.call(http.MethodGet, base, nil)
	if code != http.StatusOK {
		t.Fatalf("state: %d", code)
	}
	state := decode[struct {
		Scenes []struct {
			ID      string `json:"id"`
			Choices []struct {
				TargetSceneID *string `json:"target_scene_id"`
			} `json:"choices"`
		} `json:"scenes"`
	}](t, env)
	if len(state.Scenes) != 2 || len(state.Scenes[0].Choices) != 1 {
		t.Fatalf("unexpected state %s", env.Data)
	}
	if target := state.Scenes[0].Choices[0].TargetSceneID; target == nil || *target != second {
		t.Fatalf("choice target lost: %s", env.Data)
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	id := s.createStory("Errors")
	base := "/api/stories/" + id
	scene := s.addScene(id)

	cases := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"unknown story", http.MethodGet, "/api/stories/nope", nil, http.StatusNotFound, "STORY_NOT_FOUND"},
		{"bad story id", http.MethodGet, "/api/stories/a.b", nil, http.StatusBadRequest, "INVALID_STORY_ID"},
		{"unknown scene", http.MethodPatch, base + "/scenes/ghost", gin.H{"title": "x"}, http.StatusNotFound, ErrorSceneNotFound},
		{"unknown choice", http.MethodDelete, base + "/scenes/" + scene + "/choices/ghost", nil, http.StatusNotFound, ErrorChoiceNotFound},
		{"unknown segment", http.MethodDelete, base + "/scenes/" + scene + "/segments/4", nil, http.StatusNotFound, ErrorSegmentNotFound},
		{"bad segment index", http.MethodDelete, base + "/scenes/" + scene + "/segments/x", nil, http.StatusBadRequest, ErrorBadRequest},
		{"missing title", http.MethodPost, "/api/stories", gin.H{}, http.StatusBadRequest, ErrorBadRequest},
		{"bad pointer phase", http.MethodPost, base + "/pointer", gin.H{"phase": "hover"}, http.StatusBadRequest, ErrorBadRequest},
		{"unknown asset", http.MethodDelete, base + "/assets/ghost", nil, http.StatusNotFound, ErrorAssetNotFound},
		{"text while visual", http.MethodPut, base + "/text", gin.H{"text": "[]"}, http.StatusConflict, ErrorNotInTextMode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, env := s.call(tc.method, tc.path, tc.body)
			if code != tc.status {
				t.Fatalf("status = %d, want %d (%+v)", code, tc.status, env.Error)
			}
			if env.Success || env.Error == nil || env.Error.Code != tc.code {
				t.Fatalf("error = %+v, want code %s", env.Error, tc.code)
			}
		})
	}

	code, env := s.call(http.MethodPost, base+"/scenes/"+scene+"/choices", nil)
	if code != http.StatusCreated {
		t.Fatal(code)
	}
	choiceID := decode[struct {
		ID string `json:"id"`
	}](t, env).ID

	// a choice may point at a scene that does not exist yet
	code, env = s.call(http.MethodPatch, base+"/scenes/"+scene+"/choices/"+choiceID,
		gin.H{"target_scene_id": "scene_not_yet_created", "cost": -5})
	if code != http.StatusOK {
		t.Fatalf("dangling target rejected: %d %+v", code, env.Error)
	}
	choice := decode[models.Choice](t, env)
	if choice.TargetSceneID == nil || *choice.TargetSceneID != "scene_not_yet_created" || choice.Cost != -5 {
		t.Fatalf("unexpected choice %+v", choice)
	}

	code, env = s.call(http.MethodPatch, base+"/scenes/"+scene+"/choices/"+choiceID, gin.H{"target_scene_id": ""})
	if code != http.StatusOK {
		t.Fatal(code)
	}
	if choice = decode[models.Choice](t, env); choice.TargetSceneID != nil {
		t.Fatalf("empty target should clear, got %q", *choice.TargetSceneID)
	}
}

func TestTextModeRoundTrip(t *testing.T) {
	s := newTestServer(t)
	id := s.createStory("Text")
	base := "/api/stories/" + id
	s.addScene(id)

	code, env := s.call(http.MethodPost, base+"/text/enter", nil)
	if code != http.StatusOK {
		t.Fatal(code)
	}
	text := decode[struct {
		Text string `json:"text"`
	}](t, env).Text
	if !strings.Contains(text, "New Scene") {
		t.Fatalf("text = %q", text)
	}

	// 文本模式下拒绝图编辑
	if code, env = s.call(http.MethodPost, base+"/scenes", nil); code != http.StatusConflict || env.Error.Code != ErrorTextModeActive {
		t.Fatalf("add scene in text mode: %d %+v", code, env.Error)
	}

	if code, _ = s.call(http.MethodPut, base+"/text", gin.H{"text": "[{"}); code != http.StatusOK {
		t.Fatal(code)
	}
	code, env = s.call(http.MethodPost, base+"/text/leave", nil)
	if code != http.StatusUnprocessableEntity || env.Error.Code != ErrorTextParseFailed {
		t.Fatalf("leave with bad text: %d %+v", code, env.Error)
	}
	details, _ := json.Marshal(env.Error.Details)
	var pos ParseErrorDetails
	if err := json.Unmarshal(details, &pos); err != nil || pos.Line < 1 || pos.Reason == "" {
		t.Fatalf("details = %s", details)
	}

	// 保存时同样因解析失败被拒绝
	if code, env = s.call(http.MethodPost, base+"/save", nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("save with bad text: %d %+v", code, env.Error)
	}

	if code, _ = s.call(http.MethodPost, base+"/text/leave?discard=true", nil); code != http.StatusOK {
		t.Fatalf("discard: %d", code)
	}
	code, env = s.call(http.MethodGet, base, nil)
	state := decode[struct {
		Mode   string            `json:"mode"`
		Scenes []json.RawMessage `json:"scenes"`
	}](t, env)
	if code != http.StatusOK || state.Mode != "visual" || len(state.Scenes) != 1 {
		t.Fatalf("after discard: %d %s", code, env.Data)
	}
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func (s *testServer) upload(storyID, name string, content []byte, fields map[string]string) (int, envelope) {
	s.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		s.t.Fatal(err)
	}
	_, _ = fw.Write(content)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/stories/"+storyID+"/assets", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.serve(req)
}

func TestUploadAndUnusedAssets(t *testing.T) {
	s := newTestServer(t)
	id := s.createStory("Assets")
	base := "/api/stories/" + id
	scene := s.addScene(id)
	if code, _ := s.call(http.MethodPost, base+"/scenes/"+scene+"/segments", gin.H{"text": "Rain"}); code != http.StatusCreated {
		t.Fatal(code)
	}

	code, env := s.upload(id, "hall.png", pngHeader, map[string]string{
		"target": "segment", "scene_id": scene, "segment_index": "0",
	})
	if code != http.StatusCreated {
		t.Fatalf("upload: %d %+v", code, env.Error)
	}
	if code, _ = s.upload(id, "spare.png", pngHeader, nil); code != http.StatusCreated {
		t.Fatalf("library upload: %d", code)
	}
	if code, env = s.upload(id, "notes.txt", []byte("plain text"), nil); code != http.StatusUnsupportedMediaType {
		t.Fatalf("text upload: %d %+v", code, env.Error)
	}
	if code, env = s.upload(id, "hall.png", pngHeader, map[string]string{"target": "background_audio", "scene_id": scene}); code != http.StatusUnprocessableEntity {
		t.Fatalf("image as audio: %d %+v", code, env.Error)
	}

	code, env = s.call(http.MethodGet, base+"/assets?unused=true", nil)
	unused := decode[struct {
		Count int `json:"count"`
	}](t, env)
	if code != http.StatusOK || unused.Count != 1 {
		t.Fatalf("unused: %d %s", code, env.Data)
	}

	code, env = s.call(http.MethodDelete, base+"/assets", nil)
	if removed := decode[struct {
		Count int `json:"count"`
	}](t, env); code != http.StatusOK || removed.Count != 1 {
		t.Fatalf("delete unused: %d %s", code, env.Data)
	}
	code, env = s.call(http.MethodGet, base+"/assets", nil)
	if all := decode[struct {
		Count int `json:"count"`
	}](t, env); code != http.StatusOK || all.Count != 1 {
		t.Fatalf("assets left: %s", env.Data)
	}
}

func TestGenerateStoresFallback(t *testing.T) {
	s := newTestServer(t)
	id := s.createStory("Gen")
	base := "/api/stories/" + id
	scene := s.addScene(id)
	s.call(http.MethodPost, base+"/scenes/"+scene+"/segments", gin.H{})

	// 未配置 API key，生成失败后写入兜底文本
	code, env := s.call(http.MethodPost, base+"/scenes/"+scene+"/segments/0/generate", nil)
	if code != http.StatusOK {
		t.Fatalf("generate: %d %+v", code, env.Error)
	}
	out := decode[struct {
		Text     string `json:"text"`
		Fallback bool   `json:"fallback"`
	}](t, env)
	if !out.Fallback || out.Text != editor.FallbackSegmentText {
		t.Fatalf("got %s", env.Data)
	}

	code, env = s.call(http.MethodPost, base+"/scenes/"+scene+"/segments/7/generate", nil)
	if code != http.StatusNotFound || env.Error.Code != ErrorSegmentNotFound {
		t.Fatalf("missing segment: %d %+v", code, env.Error)
	}
}

func TestRenderCanvas(t *testing.T) {
	s := newTestServer(t)
	id := s.createStory("Render")
	s.addScene(id)
	base := "/api/stories/" + id

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, base+"/render?width=320&height=200", nil))
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/svg+xml" {
		t.Fatalf("svg: %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), "<svg") {
		t.Fatal("svg body missing root element")
	}

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, base+"/render?format=png&width=320&height=200", nil))
	if w.Code != http.StatusOK || !bytes.HasPrefix(w.Body.Bytes(), pngHeader[:8]) {
		t.Fatalf("png: %d", w.Code)
	}

	code, env := s.call(http.MethodGet, base+"/render?format=gif", nil)
	if code != http.StatusBadRequest || env.Error.Code != ErrorRenderFormat {
		t.Fatalf("gif: %d %+v", code, env.Error)
	}
}

func TestPointerDragAndCamera(t *testing.T) {
	s := newTestServer(t)
	id := s.createStory("Drag")
	base := "/api/stories/" + id
	scene := s.addScene(id)

	// 新场景位于 (100,100)，相机处于初始状态，屏幕坐标等于世界坐标
	s.call(http.MethodPost, base+"/pointer", gin.H{"phase": "down", "x": 110, "y": 110})
	s.call(http.MethodPost, base+"/pointer", gin.H{"phase": "move", "x": 160, "y": 130})
	code, env := s.call(http.MethodPost, base+"/pointer", gin.H{"phase": "up", "x": 160, "y": 130})
	if code != http.StatusOK {
		t.Fatal(code)
	}
	if sel := decode[struct {
		Selected string `json:"selected"`
	}](t, env).Selected; sel != scene {
		t.Fatalf("selected = %q", sel)
	}

	_, env = s.call(http.MethodGet, base, nil)
	state := decode[struct {
		Scenes []struct {
			Position struct{ X, Y float64 } `json:"position"`
		} `json:"scenes"`
	}](t, env)
	if p := state.Scenes[0].Position; p.X != 150 || p.Y != 120 {
		t.Fatalf("position = %+v", p)
	}

	code, env = s.call(http.MethodPost, base+"/camera/wheel", gin.H{"dy": -500, "zoom": true})
	if cam := decode[struct {
		Scale float64 `json:"scale"`
	}](t, env); code != http.StatusOK || cam.Scale <= 1 {
		t.Fatalf("zoom: %d %s", code, env.Data)
	}
	code, env = s.call(http.MethodPost, base+"/camera/reset", nil)
	if cam := decode[struct {
		Scale float64 `json:"scale"`
	}](t, env); code != http.StatusOK || cam.Scale != 1 {
		t.Fatalf("reset: %s", env.Data)
	}
}

func TestWebSocketReceivesGraphEvents(t *testing.T) {
	s := newTestServer(t)
	id := s.createStory("Live")

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/stories/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	ws, err := di.Resolve[*WebSocketManager](s.c, di.ServiceEvents)
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for ws.GetStatus()["total_connections"].(int) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.addScene(id)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev struct {
		Type    string `json:"type"`
		StoryID string `json:"story_id"`
		Version uint64 `json:"version"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "graph_updated" || ev.StoryID != id || ev.Version == 0 {
		t.Fatalf("event = %+v", ev)
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _, _ := rl.Allow("1.2.3.4"); !ok {
			t.Fatalf("request %d rejected", i)
		}
	}
	if ok, remaining, _ := rl.Allow("1.2.3.4"); ok || remaining != 0 {
		t.Fatal("third request should be rejected")
	}
	if ok, _, _ := rl.Allow("5.6.7.8"); !ok {
		t.Fatal("other clients have their own quota")
	}

	now = now.Add(time.Minute + time.Second)
	if ok, _, _ := rl.Allow("1.2.3.4"); !ok {
		t.Fatal("quota should reset after the window")
	}
}
