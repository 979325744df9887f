package driver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/mailru/easyjson"
)

// hideWebDriverScript removes the navigator.webdriver marker before any page
// script runs.
const hideWebDriverScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// cdpClient talks to the driver service directly; ChromeDriver extensions are
// not part of the WebDriver client.
var cdpClient = &http.Client{Timeout: 30 * time.Second}

type cdpCommand struct {
	Cmd    string          `json:"cmd"`
	Params json.RawMessage `json:"params"`
}

// ExecuteCDP sends a Chrome DevTools Protocol command through ChromeDriver's
// goog/cdp/execute extension.
func (s *Session) ExecuteCDP(method string, params easyjson.Marshaler) error {
	if s.Browser != Chrome {
		return fmt.Errorf("CDP command %s: not supported by %s", method, s.Browser)
	}
	raw, err := easyjson.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding %s params: %v", method, err)
	}
	body, err := json.Marshal(cdpCommand{Cmd: method, Params: raw})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/session/%s/goog/cdp/execute", strings.TrimSuffix(s.Executor, "/"), s.SessionID())
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := cdpClient.Do(req)
	if err != nil {
		return fmt.Errorf("CDP command %s: %v", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("CDP command %s: %s: %s", method, resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}

// hideAutomation registers hideWebDriverScript for every new document.
func (s *Session) hideAutomation() error {
	return s.ExecuteCDP(page.CommandAddScriptToEvaluateOnNewDocument, page.AddScriptToEvaluateOnNewDocument(hideWebDriverScript))
}
