package backtest

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"trading-backtestv1/internal/model"
	"trading-backtestv1/internal/signal"
	"trading-backtestv1/internal/strategy"
)

// DateLayout is the calendar-date format used by requests.
const DateLayout = "2006-01-02"

// Request describes one backtest invocation. It carries every input the
// run needs; nothing is read from process-wide state.
type Request struct {
	Symbol     string           `json:"symbol" yaml:"symbol" validate:"required"`
	Start      string           `json:"start" yaml:"start" validate:"required,datetime=2006-01-02"`
	End        string           `json:"end" yaml:"end" validate:"required,datetime=2006-01-02"`
	TakeProfit float64          `json:"take_profit" yaml:"take_profit" validate:"gte=0,lte=1"`
	StopLoss   float64          `json:"stop_loss" yaml:"stop_loss" validate:"gte=0,lte=1"`
	Direction  signal.Direction `json:"direction,omitempty" yaml:"direction,omitempty" validate:"omitempty,oneof=long_only long_short"`
	Strategies []strategy.Spec  `json:"strategies" yaml:"strategies" validate:"min=1,max=3,dive"`
	Combine    bool             `json:"combine,omitempty" yaml:"combine,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their wire name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// plan is a validated Request with parsed dates and built strategies.
type plan struct {
	symbol     string
	start, end time.Time
	params     signal.Params
	strategies []strategy.Strategy
	combine    bool
}

// Validate rejects the request with an *model.InvalidParameterError before
// any bar is touched.
func (r Request) Validate() error {
	_, err := r.plan()
	return err
}

func (r Request) plan() (*plan, error) {
	if err := validate.Struct(r); err != nil {
		return nil, translate(err)
	}

	start, _ := time.Parse(DateLayout, r.Start)
	end, _ := time.Parse(DateLayout, r.End)
	if !start.Before(end) {
		return nil, model.InvalidParam("end", "must be after start (%s)", r.Start)
	}
	if r.TakeProfit <= 0 && r.StopLoss <= 0 {
		return nil, model.InvalidParam("take_profit", "take_profit or stop_loss must be positive")
	}

	p := &plan{
		symbol:  r.Symbol,
		start:   start,
		end:     end,
		combine: r.Combine,
		params: signal.Params{
			TakeProfit: r.TakeProfit,
			StopLoss:   r.StopLoss,
			Direction:  r.Direction,
		},
	}
	for i, spec := range r.Strategies {
		s, err := strategy.New(spec)
		if err != nil {
			var ipe *model.InvalidParameterError
			if errors.As(err, &ipe) {
				return nil, model.InvalidParam(fmt.Sprintf("strategies[%d].%s", i, ipe.Field), "%s", ipe.Reason)
			}
			return nil, err
		}
		p.strategies = append(p.strategies, s)
	}
	return p, nil
}

// translate maps the first validator failure to an InvalidParameterError.
func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return model.InvalidParam("request", "%v", err)
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	return model.InvalidParam(field, "%s", reason(fe))
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "datetime":
		return fmt.Sprintf("must be a date in %s form", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("needs at least %s entries", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("allows at most %s entries", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	default:
		return "failed validation: " + fe.Tag()
	}
}
