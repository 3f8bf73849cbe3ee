package nav

// PIDController is a standard proportional-integral-derivative controller
// with output clamping. The navigator currently only exercises the
// proportional term (see DRIVE phase correction), but carries ki/kd and
// Reset so a future tuning pass does not need a new type.
type PIDController struct {
	kp, ki, kd  float64
	outputMin   float64
	outputMax   float64
	integral    float64
	previousErr float64
	hasPrevious bool
}

// NewPIDController builds a controller with the given gains and output
// clamp range.
func NewPIDController(kp, ki, kd, outputMin, outputMax float64) *PIDController {
	return &PIDController{kp: kp, ki: ki, kd: kd, outputMin: outputMin, outputMax: outputMax}
}

// Update advances the controller by one step of size dt seconds given the
// current error, and returns the clamped control output.
func (c *PIDController) Update(errVal, dt float64) float64 {
	if dt <= 0 {
		dt = 1e-3
	}

	c.integral += errVal * dt

	derivative := 0.0
	if c.hasPrevious {
		derivative = (errVal - c.previousErr) / dt
	}
	c.previousErr = errVal
	c.hasPrevious = true

	output := c.kp*errVal + c.ki*c.integral + c.kd*derivative
	if output > c.outputMax {
		output = c.outputMax
	} else if output < c.outputMin {
		output = c.outputMin
	}
	return output
}

// Reset clears the integral and derivative history without changing gains.
func (c *PIDController) Reset() {
	c.integral = 0
	c.previousErr = 0
	c.hasPrevious = false
}

// SetGains updates the controller's proportional, integral and derivative
// gains in place.
func (c *PIDController) SetGains(kp, ki, kd float64) {
	c.kp, c.ki, c.kd = kp, ki, kd
}
