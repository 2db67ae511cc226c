package export

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"math"
	"strings"

	"github.com/my591234-max/autolabeling/internal/domain"
	"github.com/my591234-max/autolabeling/internal/geometry"
)

// YOLO writes one normalized-box text file per image plus classes.txt.
// Images without regions still get an empty file.
func YOLO(p Project) ([]File, error) {
	classes, index := classIndex(p)
	names := stems(p.Images)
	files := make([]File, 0, len(p.Images)+1)
	for i, img := range p.Images {
		if err := checkSize(img); err != nil {
			return nil, err
		}
		w, h := float64(img.Width), float64(img.Height)
		var sb strings.Builder
		for _, r := range p.Regions[img.ID] {
			cx := r.Box.X + r.Box.W/2
			cy := r.Box.Y + r.Box.H/2
			fmt.Fprintf(&sb, "%d %.6f %.6f %.6f %.6f\n", index[r.Label], cx/w, cy/h, r.Box.W/w, r.Box.H/h)
		}
		files = append(files, File{Name: names[i] + ".txt", Data: []byte(sb.String()), ContentType: "text/plain"})
	}
	manifest := ""
	if len(classes) > 0 {
		manifest = strings.Join(classes, "\n") + "\n"
	}
	files = append(files, File{Name: "classes.txt", Data: []byte(manifest), ContentType: "text/plain"})
	return files, nil
}

type cocoDocument struct {
	Images      []cocoImage      `json:"images"`
	Annotations []cocoAnnotation `json:"annotations"`
	Categories  []cocoCategory   `json:"categories"`
}

type cocoImage struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type cocoAnnotation struct {
	ID         int     `json:"id"`
	ImageID    int     `json:"image_id"`
	CategoryID int     `json:"category_id"`
	BBox       [4]int  `json:"bbox"`
	Area       int     `json:"area"`
	Score      float64 `json:"score"`
	IsCrowd    int     `json:"iscrowd"`
}

type cocoCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// COCO writes a single flat annotations.json. Image, annotation and
// category ids are 1-based.
func COCO(p Project) ([]File, error) {
	classes, index := classIndex(p)
	doc := cocoDocument{
		Images:      make([]cocoImage, 0, len(p.Images)),
		Annotations: []cocoAnnotation{},
		Categories:  make([]cocoCategory, 0, len(classes)),
	}
	for i, img := range p.Images {
		if err := checkSize(img); err != nil {
			return nil, err
		}
		doc.Images = append(doc.Images, cocoImage{ID: i + 1, FileName: img.Name, Width: img.Width, Height: img.Height})
		for _, r := range p.Regions[img.ID] {
			doc.Annotations = append(doc.Annotations, cocoAnnotation{
				ID:         len(doc.Annotations) + 1,
				ImageID:    i + 1,
				CategoryID: index[r.Label] + 1,
				BBox:       [4]int{round(r.Box.X), round(r.Box.Y), round(r.Box.W), round(r.Box.H)},
				Area:       round(r.Box.Area()),
				Score:      r.Confidence,
			})
		}
	}
	for i, name := range classes {
		doc.Categories = append(doc.Categories, cocoCategory{ID: i + 1, Name: name})
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode coco document: %w", err)
	}
	return []File{{Name: "annotations.json", Data: data, ContentType: "application/json"}}, nil
}

type vocAnnotation struct {
	XMLName  xml.Name    `xml:"annotation"`
	Filename string      `xml:"filename"`
	Size     vocSize     `xml:"size"`
	Objects  []vocObject `xml:"object"`
}

type vocSize struct {
	Width  int `xml:"width"`
	Height int `xml:"height"`
	Depth  int `xml:"depth"`
}

type vocObject struct {
	Name       string `xml:"name"`
	Status     string `xml:"status"`
	Confidence string `xml:"confidence"`
	Difficult  int    `xml:"difficult"`
	BndBox     vocBox `xml:"bndbox"`
}

type vocBox struct {
	XMin int `xml:"xmin"`
	YMin int `xml:"ymin"`
	XMax int `xml:"xmax"`
	YMax int `xml:"ymax"`
}

// VOC writes one XML document per image.
func VOC(p Project) ([]File, error) {
	names := stems(p.Images)
	files := make([]File, 0, len(p.Images))
	for i, img := range p.Images {
		if err := checkSize(img); err != nil {
			return nil, err
		}
		doc := vocAnnotation{
			Filename: img.Name,
			Size:     vocSize{Width: img.Width, Height: img.Height, Depth: 3},
		}
		for _, r := range p.Regions[img.ID] {
			doc.Objects = append(doc.Objects, vocObject{
				Name:       r.Label,
				Status:     string(r.Status),
				Confidence: fmt.Sprintf("%.3f", r.Confidence),
				BndBox: vocBox{
					XMin: round(r.Box.X),
					YMin: round(r.Box.Y),
					XMax: round(r.Box.Right()),
					YMax: round(r.Box.Bottom()),
				},
			})
		}
		data, err := xml.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode voc document for %s: %w", img.Name, err)
		}
		data = append([]byte(xml.Header), data...)
		files = append(files, File{Name: names[i] + ".xml", Data: data, ContentType: "application/xml"})
	}
	return files, nil
}

type jsonDocument struct {
	Images []jsonImage `json:"images"`
}

type jsonImage struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Width   int          `json:"width"`
	Height  int          `json:"height"`
	Regions []jsonRegion `json:"regions"`
}

type jsonRegion struct {
	ID         int           `json:"id"`
	Label      string        `json:"label"`
	Confidence float64       `json:"confidence"`
	Status     domain.Status `json:"status"`
	BBox       geometry.Box  `json:"bbox"`
}

// JSON writes the nested per-image document with float boxes.
func JSON(p Project) ([]File, error) {
	doc := jsonDocument{Images: make([]jsonImage, 0, len(p.Images))}
	for _, img := range p.Images {
		out := jsonImage{ID: img.ID, Name: img.Name, Width: img.Width, Height: img.Height, Regions: []jsonRegion{}}
		for _, r := range p.Regions[img.ID] {
			out.Regions = append(out.Regions, jsonRegion{ID: r.ID, Label: r.Label, Confidence: r.Confidence, Status: r.Status, BBox: r.Box})
		}
		doc.Images = append(doc.Images, out)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json document: %w", err)
	}
	return []File{{Name: "annotations.json", Data: data, ContentType: "application/json"}}, nil
}

func round(v float64) int { return int(math.Round(v)) }
