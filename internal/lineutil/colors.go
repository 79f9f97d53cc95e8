package lineutil

// 4-point grid spacing.
const (
	SpacingXS  = "4px"
	SpacingS   = "8px"
	SpacingM   = "12px"
	SpacingL   = "16px"
	SpacingXL  = "20px"
	SpacingXXL = "24px"

	LineSpacingNormal = "6px"
)

// Eco palette.
const (
	ColorLeaf      = "#2E7D32"
	ColorLeafLight = "#66BB6A"
	ColorMoss      = "#558B2F"
	ColorWhite     = "#FFFFFF"
	ColorText      = "#111111"
	ColorLabel     = "#666666"
	ColorSeparator = "#DFDFDF"

	ColorPrimary   = ColorLeaf
	ColorSecondary = ColorMoss
	ColorHeroBg    = ColorLeaf
	ColorHeroText  = ColorWhite
)
