package ticker

import (
	"fmt"
	"net/url"
)

// badgeTemplate is a 100x100 badge: symbol top-left, price below it, percent
// change and direction arrow along the bottom, over a dark gradient tinted by
// the trend color.
const badgeTemplate = `<svg width="100" height="100" xmlns="http://www.w3.org/2000/svg">
	<defs>
		<linearGradient id="grad" x1="0" y1="0" x2="0" y2="1">
			<stop offset="0%%" stop-color="#000000"/>
			<stop offset="30%%" stop-color="#000000"/>
			<stop offset="100%%" stop-color="%s"/>
		</linearGradient>
	</defs>
	<rect width="100" height="100" fill="url(#grad)"/>
	<text x="6" y="24" font-size="24" font-weight="900" fill="white" font-family="Arial">%s</text>
	<text x="72" y="88" font-size="17" font-weight="900" fill="%s" font-family="Arial">%s</text>
	<text x="6" y="50" font-size="17" font-weight="700" fill="white" font-family="Arial">%s</text>
	<text x="6" y="88" font-size="17" font-weight="700" fill="%s" font-family="Arial">%s</text>
</svg>`

// SVG renders the payload as a badge image.
func (p DisplayPayload) SVG() string {
	return fmt.Sprintf(badgeTemplate,
		p.Trend.BadgeColor(),
		p.CurrencyLabel,
		p.Trend.ArrowColor(), p.Trend.Arrow(),
		p.FormattedPrice,
		p.Trend.ArrowColor(), p.ChangePercentText,
	)
}

// ImageDataURI encodes the badge as a data URI suitable for setImage.
func (p DisplayPayload) ImageDataURI() string {
	return "data:image/svg+xml," + url.PathEscape(p.SVG())
}
