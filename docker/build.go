package docker

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	dockertypes "github.com/docker/docker/api/types"
)

// BuildImage builds a Docker image tagged tag from the Dockerfile and
// sources in contextDir. the context directory is packed into a gzipped tar
// stream in memory-bounded fashion (streamed straight to the daemon, never
// buffered whole) the same way the `docker build` CLI itself does before
// handing off to the Engine API.
func (client *Client) BuildImage(ctx context.Context, tag string, contextDir string) (string, error) {
	pipeReader, pipeWriter := io.Pipe()

	go func() {
		err := tarDirectory(contextDir, pipeWriter)
		pipeWriter.CloseWithError(err)
	}()

	response, err := client.sdk.ImageBuild(ctx, pipeReader, dockertypes.ImageBuildOptions{
		Tags:       []string{tag},
		Dockerfile: "Dockerfile",
		Remove:     true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start image build for %q: %w", tag, err)
	}
	defer response.Body.Close()

	// ImageBuild's response body is a stream of newline-delimited JSON
	// progress/log lines, the same shape ImagePull returns. It must be
	// drained to completion; the last "error" field in the stream (if any)
	// is the authoritative build failure reason, since the HTTP status alone
	// does not reflect a build step failing partway through.
	combinedOutput, buildErr := drainBuildResponse(response.Body)
	if buildErr != nil {
		return combinedOutput, fmt.Errorf("image build failed for %q: %w", tag, buildErr)
	}

	client.logger.Info("image built", "tag", tag, "context_dir", contextDir)
	return combinedOutput, nil
}

// buildProgressLine is one newline-delimited JSON object from the Engine
// API's image-build response stream.
type buildProgressLine struct {
	Stream      string `json:"stream"`
	ErrorDetail *struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
	Error string `json:"error"`
}

func drainBuildResponse(body io.Reader) (string, error) {
	var combined []byte
	var buildErr error

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line buildProgressLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			// not every line from the daemon is guaranteed to parse cleanly
			// (auxiliary progress payloads have a different shape); skip and continue.
			continue
		}
		if line.Stream != "" {
			combined = append(combined, []byte(line.Stream)...)
		}
		if line.Error != "" {
			buildErr = fmt.Errorf("%s", line.Error)
		}
	}
	if err := scanner.Err(); err != nil {
		return string(combined), fmt.Errorf("failed reading build response stream: %w", err)
	}
	return string(combined), buildErr
}

// tarDirectory streams contextDir as a gzipped tar archive, the format the
// Engine API's build endpoint expects as its request body.
func tarDirectory(contextDir string, out io.Writer) error {
	gzipWriter := gzip.NewWriter(out)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	return filepath.WalkDir(contextDir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == contextDir {
			return nil
		}

		relPath, err := filepath.Rel(contextDir, path)
		if err != nil {
			return err
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(relPath)

		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}

		if entry.IsDir() {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(tarWriter, file)
		return err
	})
}
