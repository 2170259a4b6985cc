package tools

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/YumaSeno/AIDeveloper/internal/tool"
	"github.com/YumaSeno/AIDeveloper/internal/workspace"
)

const (
	FileReaderName = "FileReaderTool"
	FileWriterName = "FileWriterTool"
	GetImageName   = "GetImageTool"
)

const (
	omitted         = "(omitted)"
	omitContentOver = 200
)

type FileReaderArgs struct {
	Filenames []string `json:"filenames" jsonschema_description:"Workspace-relative paths of the files to read."`
}

// FileReader returns each requested file's content keyed by name.
func FileReader(ws *workspace.Workspace) tool.Tool {
	return tool.New(tool.Spec[FileReaderArgs, map[string]string]{
		Name:        FileReaderName,
		Description: "Reads one or more project files and returns their contents keyed by file name.",
		Run: func(_ context.Context, args FileReaderArgs) (map[string]string, error) {
			if len(args.Filenames) == 0 {
				return nil, errors.New("filenames must list at least one file")
			}
			return ws.ReadFiles(args.Filenames), nil
		},
		OmitResult: func(_ int, result map[string]string) map[string]string {
			for name, content := range result {
				if len(content) > omitContentOver {
					result[name] = omitted
				}
			}
			return result
		},
	})
}

type Artifact struct {
	Filename string `json:"filename" jsonschema_description:"Workspace-relative path including directories, e.g. docs/requirements.md."`
	Contents string `json:"contents" jsonschema_description:"Full file contents."`
}

type FileWriterArgs struct {
	Artifacts []Artifact `json:"artifacts" jsonschema_description:"Files to create or overwrite."`
}

// FileWriter creates or overwrites project files.
func FileWriter(ws *workspace.Workspace) tool.Tool {
	return tool.New(tool.Spec[FileWriterArgs, string]{
		Name:        FileWriterName,
		Description: "Writes one or more project files, creating directories as needed.",
		Run: func(_ context.Context, args FileWriterArgs) (string, error) {
			if len(args.Artifacts) == 0 {
				return "", errors.New("artifacts must list at least one file")
			}
			for _, a := range args.Artifacts {
				if err := ws.SaveArtifact(a.Filename, a.Contents); err != nil {
					return "", err
				}
			}
			return fmt.Sprintf("wrote %d file(s)", len(args.Artifacts)), nil
		},
		OmitArgs: func(_ int, args FileWriterArgs) FileWriterArgs {
			for i := range args.Artifacts {
				args.Artifacts[i].Contents = omitted
			}
			return args
		},
	})
}

type GetImageArgs struct {
	FilePath string `json:"filePath" jsonschema_description:"Workspace-relative path of the image, e.g. screenshots/home.png."`
}

type Image struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

func imageType(name string) string {
	if t, ok := imageTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return "image/jpeg"
}

// GetImage loads a workspace image so the next prompt can show it.
func GetImage(ws *workspace.Workspace) tool.AttachmentTool {
	return tool.NewAttaching(tool.Spec[GetImageArgs, Image]{
		Name: GetImageName,
		Description: "Loads an image file from the project so you can look at it on your next turn, " +
			"for example a screenshot saved by a shell command.",
		Run: func(_ context.Context, args GetImageArgs) (Image, error) {
			if args.FilePath == "" {
				return Image{}, errors.New("filePath is empty")
			}
			data, err := ws.ReadFile(args.FilePath)
			if err != nil {
				return Image{}, fmt.Errorf("image %s is missing or unreadable: %w", args.FilePath, err)
			}
			return Image{
				MIMEType: imageType(args.FilePath),
				Data:     base64.StdEncoding.EncodeToString(data),
			}, nil
		},
	}, func(img Image) (tool.Attachment, error) {
		data, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			return tool.Attachment{}, fmt.Errorf("decode image: %w", err)
		}
		return tool.Attachment{MIMEType: img.MIMEType, Data: data}, nil
	})
}
