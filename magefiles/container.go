//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// markitdownDockerfile builds the image the document parser pipes
// pdf, docx and pptx files through.
const markitdownDockerfile = `FROM python:3.12-slim
RUN pip install --no-cache-dir 'markitdown[pdf,docx,pptx]'
ENTRYPOINT ["markitdown"]
`

// Markitdown builds the markitdown:latest image with docker or podman.
func Markitdown() error {
	tool, err := containerTool()
	if err != nil {
		return err
	}
	cmd := exec.Command(tool, "build", "-t", "markitdown:latest", "-")
	cmd.Stdin = strings.NewReader(markitdownDockerfile)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s build: %w", tool, err)
	}
	fmt.Println("Built markitdown:latest")
	return nil
}

func containerTool() (string, error) {
	for _, tool := range []string{"docker", "podman"} {
		if _, err := exec.LookPath(tool); err == nil {
			return tool, nil
		}
	}
	return "", fmt.Errorf("no container runtime found: install docker or podman")
}
