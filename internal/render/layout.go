package render

import (
	"image"
	"image/color"
)

// FontFamily names one of the three faces the layout uses.
type FontFamily string

const (
	FontNunito  FontFamily = "nunito"
	FontArimo   FontFamily = "arimo"
	FontDMSerif FontFamily = "dm_serif"
)

// Page selects which base template a field is drawn on.
type Page int

const (
	PageFront Page = 1
	PageBack  Page = 2
)

// Field identifies the candidate value a text slot shows.
type Field string

const (
	FieldName       Field = "name"
	FieldNationalID Field = "national_id"
	FieldCourse     Field = "course"
	FieldDate       Field = "date"
	FieldCode       Field = "code"
	FieldApproved   Field = "approved"
	FieldScore      Field = "score"
	FieldExpiration Field = "expiration"
)

// TextSlot is one fixed-position text placement. X and Y are the left end of
// the baseline; Size is in points at 96 DPI.
type TextSlot struct {
	Page  Page
	Field Field
	X, Y  int
	Size  float64
	Font  FontFamily
	Color string
}

// ApprovedLabel is the literal printed on the back page.
const ApprovedLabel = "Aprobado"

// DateLayout renders dates as DD/MM/YYYY.
const DateLayout = "02/01/2006"

// Palette holds the named colors of both templates.
var Palette = map[string]color.NRGBA{
	"name":    {R: 0, G: 32, B: 96, A: 255},
	"dni":     {R: 53, G: 55, B: 68, A: 255},
	"course":  {R: 7, G: 55, B: 99, A: 255},
	"code":    {R: 66, G: 66, B: 66, A: 255},
	"date":    {R: 53, G: 55, B: 68, A: 255},
	"course2": {R: 35, G: 58, B: 68, A: 255},
}

// Layout is the fixed text table, drawn in order.
var Layout = []TextSlot{
	{Page: PageFront, Field: FieldName, X: 350, Y: 325, Size: 30, Font: FontNunito, Color: "name"},
	{Page: PageFront, Field: FieldNationalID, X: 675, Y: 382, Size: 14, Font: FontArimo, Color: "dni"},
	{Page: PageFront, Field: FieldCourse, X: 430, Y: 438, Size: 25, Font: FontDMSerif, Color: "course"},
	{Page: PageFront, Field: FieldDate, X: 750, Y: 565, Size: 14, Font: FontArimo, Color: "date"},
	{Page: PageFront, Field: FieldCode, X: 275, Y: 565, Size: 14, Font: FontDMSerif, Color: "code"},

	{Page: PageBack, Field: FieldCourse, X: 360, Y: 100, Size: 39, Font: FontDMSerif, Color: "course2"},
	{Page: PageBack, Field: FieldApproved, X: 220, Y: 200, Size: 36, Font: FontDMSerif, Color: "course2"},
	{Page: PageBack, Field: FieldScore, X: 720, Y: 200, Size: 36, Font: FontNunito, Color: "course2"},
	{Page: PageBack, Field: FieldName, X: 220, Y: 260, Size: 22, Font: FontNunito, Color: "course2"},
	{Page: PageBack, Field: FieldNationalID, X: 220, Y: 295, Size: 14, Font: FontArimo, Color: "course2"},
	{Page: PageBack, Field: FieldExpiration, X: 720, Y: 295, Size: 14, Font: FontArimo, Color: "course2"},
}

// QRPlacement is where the verification code lands on the front page.
var QRPlacement = image.Rect(20, 20, 120, 120)

// SyllabusPlacement is where the course syllabus lands on the back page.
var SyllabusPlacement = image.Rect(170, 335, 970, 635)

// fontDPI matches the resolution the layout coordinates were measured at.
const fontDPI = 96
