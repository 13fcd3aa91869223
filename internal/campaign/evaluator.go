package campaign

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/jh9098/gtoapp/internal/fetch"
	"github.com/jh9098/gtoapp/internal/metrics"
)

// Page markers and field placeholders used by the campaign detail pages.
const (
	loginRedirectMarker = "window.location.href = '/usr/login_form';"

	markerEnded         = "종료된 캠페인 입니다"
	markerNotJoinable   = "해당 캠페인은 참여가 불가능한 상태입니다."
	markerOutsideWindow = "참여 가능 시간이 아닙니다"
	markerJoinButton    = "캠페인 참여"
	markerTextReview    = "텍스트 리뷰"

	placeholderName   = "상품명 없음"
	placeholderPrice  = "가격 정보 없음"
	placeholderType   = "상품구분 없음"
	placeholderShop   = "쇼핑몰 정보 없음"
	reviewTypePhoto   = "포토 리뷰"
	shippingTypeOther = "기타배송"
	shippingTypeReal  = "실배송"
	shopSmartStore    = "스마트스토어"
	shopCoupang       = "쿠팡"

	resultSeparator = " & "
)

// Minimum order values by shipping method and marketplace. These encode
// business policy, not tuning knobs.
const (
	floorOtherSmartStore = 90000
	floorOtherCoupang    = 28500
	floorReal            = 8500
)

var (
	dayTokenPattern = regexp.MustCompile(`(\d{2})일`)
	nonDigitPattern = regexp.MustCompile(`[^\d]`)
)

// Evaluator fetches one campaign detail page, extracts its fields, and
// applies the eligibility rules.
type Evaluator struct {
	fetcher     fetch.Fetcher
	urlTemplate string
	logger      *zap.Logger
}

// NewEvaluator constructs an Evaluator. urlTemplate must contain a single
// %d placeholder for the campaign ID.
func NewEvaluator(fetcher fetch.Fetcher, urlTemplate string, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		fetcher:     fetcher,
		urlTemplate: urlTemplate,
		logger:      logger,
	}
}

// URL returns the detail page address for a campaign.
func (e *Evaluator) URL(id ID) string {
	return fmt.Sprintf(e.urlTemplate, int(id))
}

// Evaluate fetches the detail page for id using the session identity and
// returns the accepted Result, or ok=false when any exclusion rule fires.
// Transport failures are absorbed as exclusions; the ID space is large and
// individual misses are cheap to drop, so per-ID fetches are never retried.
func (e *Evaluator) Evaluate(ctx context.Context, id ID, identity string, dir DirectorySet, filters Filters) (Result, bool) {
	url := e.URL(id)
	page, err := e.fetcher.Fetch(ctx, url, identity)
	if err != nil {
		e.logger.Debug("campaign fetch failed", zap.Int("id", int(id)), zap.Error(err))
		metrics.RecordFetchFailure()
		metrics.RecordEvaluation(metrics.OutcomeExcluded)
		return Result{}, false
	}
	res, ok := e.evaluatePage(id, url, page.Body, dir, filters)
	switch {
	case !ok:
		metrics.RecordEvaluation(metrics.OutcomeExcluded)
	case res.Public:
		metrics.RecordEvaluation(metrics.OutcomePublic)
	default:
		metrics.RecordEvaluation(metrics.OutcomeHidden)
	}
	return res, ok
}

func (e *Evaluator) evaluatePage(id ID, url string, body []byte, dir DirectorySet, filters Filters) (Result, bool) {
	// Expired or missing session cookies redirect to the login form.
	if bytes.Contains(body, []byte(loginRedirectMarker)) {
		return Result{}, false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		e.logger.Debug("campaign parse failed", zap.Int("id", int(id)), zap.Error(err))
		return Result{}, false
	}

	participation := strings.TrimSpace(doc.Find("button.butn.butn-success[disabled]").First().Text())
	participation = strings.ReplaceAll(participation, "시에", "시 00분에")

	dayToken := dayTokenPattern.FindString(participation)
	if dayToken == "" || !containsString(filters.SelectedDays, dayToken) {
		return Result{}, false
	}

	productName := strings.TrimSpace(doc.Find("h3").First().Text())
	if productName == "" {
		productName = placeholderName
	} else {
		productName = strings.ReplaceAll(productName, "&", "")
	}

	if e.isClosed(doc) {
		return Result{}, false
	}

	for _, keyword := range filters.ExcludeKeywords {
		if keyword != "" && strings.Contains(productName, keyword) {
			return Result{}, false
		}
	}

	price := extractPrice(doc)
	shippingType := extractShippingType(doc)
	shopName := extractShopName(doc)

	reviewType := reviewTypePhoto
	if hasExactText(doc.Find("label"), markerTextReview) {
		reviewType = markerTextReview
	}

	if price != placeholderPrice {
		n, convErr := strconv.Atoi(price)
		if convErr == nil && belowFloor(n, shippingType, shopName) {
			return Result{}, false
		}
	}

	line := strings.Join([]string{
		shippingType, reviewType, shopName, price, participation, productName, url,
	}, resultSeparator)

	return Result{ID: id, Line: line, Public: dir.Contains(id)}, true
}

// isClosed reports whether the page carries any marker that disqualifies the
// campaign despite matching the day filter: an ended banner, a not-joinable
// alert, an outside-window notice, or an active join control.
func (e *Evaluator) isClosed(doc *goquery.Document) bool {
	if hasExactText(doc.Find("button"), markerEnded) {
		return true
	}
	if hasExactText(doc.Find("div#alert_msg"), markerNotJoinable) {
		return true
	}
	if hasExactText(doc.Find("button"), markerOutsideWindow) {
		return true
	}
	return hasExactText(doc.Find("button"), markerJoinButton)
}

func extractPrice(doc *goquery.Document) string {
	label := findByTextContains(doc.Find("div,span,td,th,dt,p"), "총 결제금액")
	if label == nil {
		return placeholderPrice
	}
	value := nextRightAligned(label)
	if value == nil {
		return placeholderPrice
	}
	digits := nonDigitPattern.ReplaceAllString(value.Text(), "")
	if digits == "" {
		return placeholderPrice
	}
	return digits
}

func extractShippingType(doc *goquery.Document) string {
	shippingType := placeholderType
	doc.Find("div.row.col-sm4.col-12").EachWithBreak(func(_ int, section *goquery.Selection) bool {
		title := section.Find("div.col-6").First()
		value := section.Find(`div[style="text-align:right"]`).First()
		if title.Length() == 0 || value.Length() == 0 {
			return true
		}
		if strings.Contains(title.Text(), "배송") {
			shippingType = strings.TrimSpace(value.Text())
			return false
		}
		return true
	})
	return shippingType
}

func extractShopName(doc *goquery.Document) string {
	img := doc.Find("div.col-sm-9").First().Find("img").First()
	if alt, ok := img.Attr("alt"); ok {
		if name := strings.TrimSpace(alt); name != "" {
			return name
		}
	}
	return placeholderShop
}

func belowFloor(price int, shippingType, shopName string) bool {
	if strings.Contains(shippingType, shippingTypeOther) {
		if strings.Contains(shopName, shopSmartStore) && price < floorOtherSmartStore {
			return true
		}
		if strings.Contains(shopName, shopCoupang) && price < floorOtherCoupang {
			return true
		}
	}
	return strings.Contains(shippingType, shippingTypeReal) && price < floorReal
}

// hasExactText reports whether any element in sel has exactly the given
// trimmed text content.
func hasExactText(sel *goquery.Selection, text string) bool {
	found := false
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) == text {
			found = true
			return false
		}
		return true
	})
	return found
}

// findByTextContains returns the first element whose own text contains the
// given substring, preferring the innermost match in document order.
func findByTextContains(sel *goquery.Selection, substr string) *goquery.Selection {
	var found *goquery.Selection
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(s.Text(), substr) && !strings.Contains(s.Children().Text(), substr) {
			found = s
			return false
		}
		return true
	})
	return found
}

// nextRightAligned walks forward in document order from start and returns
// the first right-aligned div, looking through following siblings at each
// ancestry level.
func nextRightAligned(start *goquery.Selection) *goquery.Selection {
	const sel = `div[style="text-align:right"]`
	for cur := start; cur.Length() > 0; cur = cur.Parent() {
		siblings := cur.NextAll()
		if hit := siblings.Filter(sel); hit.Length() > 0 {
			return hit.First()
		}
		if hit := siblings.Find(sel); hit.Length() > 0 {
			return hit.First()
		}
	}
	return nil
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
