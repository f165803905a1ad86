package main

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
)

// projectID derives a stable per-working-directory identifier,
// grounded on original_source's sage_stop_hook.py get_project_id:
// md5(cwd)[:12].
func projectID() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	sum := md5.Sum([]byte(cwd))
	return fmt.Sprintf("%x", sum)[:12]
}

// projectName derives a human-readable project name from the working
// directory's base name, mirroring get_project_id's companion
// os.path.basename(os.getcwd()) call.
func projectName() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Base(cwd)
}

func orProjectID(v string) string {
	if v != "" {
		return v
	}
	return projectID()
}

func orProjectName(v string) string {
	if v != "" {
		return v
	}
	return projectName()
}
