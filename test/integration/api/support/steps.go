package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/mathocr/internal/ocr"
	"github.com/MeKo-Tech/mathocr/internal/testutil"
	"github.com/cucumber/godog"
)

// RegisterSteps registers every step of the API features.
func (testCtx *TestContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Step(`^debug artifacts are (enabled|disabled)$`, testCtx.debugArtifactsAre)
	sc.Step(`^the detector reads "([^"]*)"$`, testCtx.theDetectorReads)
	sc.Step(`^the detector reads nothing$`, testCtx.theDetectorReadsNothing)
	sc.Step(`^the detector takes (\d+) ms with a (\d+) ms timeout$`, testCtx.theDetectorTakes)
	sc.Step(`^the detector fails with "([^"]*)"$`, testCtx.theDetectorFailsWith)
	sc.Step(`^the API server is running$`, testCtx.StartServer)
	sc.Step(`^I upload a generated image$`, testCtx.iUploadAGeneratedImage)
	sc.Step(`^I upload the bytes "([^"]*)"$`, testCtx.iUploadTheBytes)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseFieldShouldBe)
	sc.Step(`^the response field "([^"]*)" should start with "([^"]*)"$`, testCtx.theResponseFieldShouldStartWith)
	sc.Step(`^the annotated image should be served$`, testCtx.theAnnotatedImageShouldBeServed)
	sc.Step(`^the debug record should contain "([^"]*)"$`, testCtx.theDebugRecordShouldContain)
	sc.Step(`^the debug root should be empty$`, testCtx.theDebugRootShouldBeEmpty)
}

func (testCtx *TestContext) debugArtifactsAre(state string) error {
	testCtx.Debug = state == "enabled"
	return nil
}

// theDetectorReads sets the detection texts; "|" separates detections.
func (testCtx *TestContext) theDetectorReads(texts string) error {
	testCtx.Engine.Detections = ocr.NewStaticEngine(strings.Split(texts, "|")...).Detections
	return nil
}

func (testCtx *TestContext) theDetectorReadsNothing() error {
	testCtx.Engine.Detections = nil
	return nil
}

func (testCtx *TestContext) theDetectorTakes(delayMs, timeoutMs int) error {
	testCtx.Engine.Delay = time.Duration(delayMs) * time.Millisecond
	testCtx.PoolTimeout = time.Duration(timeoutMs) * time.Millisecond
	return nil
}

func (testCtx *TestContext) theDetectorFailsWith(msg string) error {
	testCtx.Engine.Err = errors.New(msg)
	return nil
}

func (testCtx *TestContext) iUploadAGeneratedImage() error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testutil.GenerateTextImage(testutil.DefaultTestImageConfig())); err != nil {
		return err
	}
	return testCtx.upload(buf.Bytes())
}

func (testCtx *TestContext) iUploadTheBytes(data string) error {
	return testCtx.upload([]byte(data))
}

func (testCtx *TestContext) upload(data []byte) error {
	if err := testCtx.StartServer(); err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "imagen.png")
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(testCtx.URL()+"/detectar", mw.FormDataContentType(), &body)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastStatus = resp.StatusCode
	testCtx.LastBody = nil
	if err := json.Unmarshal(raw, &testCtx.LastBody); err != nil {
		return fmt.Errorf("response is not JSON: %w (%s)", err, raw)
	}
	return nil
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastStatus != status {
		return fmt.Errorf("expected status %d, got %d (body %v)", status, testCtx.LastStatus, testCtx.LastBody)
	}
	return nil
}

// field renders a response field the way it reads in a feature file.
func (testCtx *TestContext) field(name string) (string, error) {
	v, ok := testCtx.LastBody[name]
	if !ok {
		return "", fmt.Errorf("response has no field %q: %v", name, testCtx.LastBody)
	}
	if v == nil {
		return "null", nil
	}
	return fmt.Sprint(v), nil
}

func (testCtx *TestContext) theResponseFieldShouldBe(name, want string) error {
	got, err := testCtx.field(name)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("field %q: expected %q, got %q", name, want, got)
	}
	return nil
}

func (testCtx *TestContext) theResponseFieldShouldStartWith(name, prefix string) error {
	got, err := testCtx.field(name)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(got, prefix) {
		return fmt.Errorf("field %q: expected prefix %q, got %q", name, prefix, got)
	}
	return nil
}

func (testCtx *TestContext) annotatedURL() (string, error) {
	url, err := testCtx.field("annotated_url")
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", errors.New("response has no annotated_url")
	}
	return url, nil
}

func (testCtx *TestContext) theAnnotatedImageShouldBeServed() error {
	url, err := testCtx.annotatedURL()
	if err != nil {
		return err
	}
	resp, err := http.Get(testCtx.URL() + url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	if _, err := png.Decode(resp.Body); err != nil {
		return fmt.Errorf("annotated image is not a PNG: %w", err)
	}
	return nil
}

func (testCtx *TestContext) theDebugRecordShouldContain(file string) error {
	url, err := testCtx.annotatedURL()
	if err != nil {
		return err
	}
	record := filepath.Dir(strings.TrimPrefix(url, "/debug/"))
	path := filepath.Join(testCtx.DebugRoot, record, file)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("debug record is missing %s: %w", file, err)
	}
	return nil
}

func (testCtx *TestContext) theDebugRootShouldBeEmpty() error {
	entries, err := os.ReadDir(testCtx.DebugRoot)
	if err != nil {
		return err
	}
	if len(entries) != 0 {
		return fmt.Errorf("expected empty debug root, found %d entries", len(entries))
	}
	return nil
}
