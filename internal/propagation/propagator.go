package propagation

import (
	"errors"
	"fmt"
	"math"

	"github.com/star/tlepos/internal/tle"
	"github.com/star/tlepos/internal/transform"
)

// Propagator evaluates one element set with SGP4 (near-earth) or SDP4
// (deep-space). It is immutable after New and safe for concurrent use.
type Propagator struct {
	el    tle.Elements
	grav  GravityModel
	g     gravConsts
	epoch transform.Epoch

	// Mean elements; no is the un-Kozai'd mean motion in rad/min.
	ecco, inclo, nodeo, argpo, mo, no, bstar float64

	// Secular rates and drag coefficients shared by both branches.
	mdot, argpdot, nodedot, nodecf float64
	cc1, cc4, t2cof                float64

	// Short-period coefficients at the mean inclination.
	sp shortPeriod

	gsto float64 // sidereal angle at epoch, rad

	branch branch
}

// shortPeriod holds the inclination-dependent coefficients of the long- and
// short-period terms.
type shortPeriod struct {
	aycof, xlcof          float64
	con41, x1mth2, x7thm1 float64
}

// secularState carries the mean elements at tsince through the branch hooks.
type secularState struct {
	xmdf                float64 // mean anomaly with secular gravity only
	mm, argpm, nodem    float64
	em, inclm, nm       float64
	tempa, tempe, templ float64
}

// osculating carries the elements after lunar-solar periodics.
type osculating struct {
	ep, xincp, nodep, argpp, mp float64
}

// branch is the model-specific part of the propagator.
type branch interface {
	kind() Branch
	// secular applies drag (near-earth) or lunar-solar secular and
	// resonance terms (deep-space) to s.
	secular(p *Propagator, t float64, s *secularState)
	// periodics applies lunar-solar periodics to o and returns the
	// short-period coefficients valid for the perturbed inclination.
	periodics(p *Propagator, t float64, o *osculating) (shortPeriod, error)
}

const (
	twoPi           = 2.0 * math.Pi
	x2o3            = 2.0 / 3.0
	temp4           = 1.5e-12
	deepSpaceMinPer = 225.0 // minutes

	keplerTol     = 1e-12
	keplerMaxIter = 10
	// keplerGiveUp is the residual correction above which a solve that hit
	// keplerMaxIter is reported as non-converged.
	keplerGiveUp = 1e-9
)

// New initializes a propagator for el. The element set is evaluated once at
// its epoch so that sets already decayed at epoch are rejected here.
func New(el *tle.Elements, grav GravityModel) (*Propagator, error) {
	if el == nil {
		return nil, errors.New("propagation: nil elements")
	}
	p := &Propagator{
		el:    *el,
		grav:  grav,
		g:     grav.constants(),
		epoch: el.Epoch,
		ecco:  el.Eccentricity,
		inclo: el.Inclination,
		nodeo: el.RAAN,
		argpo: el.ArgPerigee,
		mo:    el.MeanAnomaly,
		no:    el.MeanMotion,
		bstar: el.BStar,
	}
	if err := p.init(); err != nil {
		return nil, err
	}
	if _, _, err := p.propagate(0); err != nil {
		return nil, fmt.Errorf("initializing satellite %d: %w", el.SatNum, err)
	}
	return p, nil
}

// init is sgp4init (Vallado 2006, "improved" operation mode).
func (p *Propagator) init() error {
	g := &p.g
	re := g.radiusearthkm

	if !(p.ecco >= 0 && p.ecco < 1) {
		return &Error{Code: CodeMeanEccentricity}
	}
	if !(p.no > 0) {
		return &Error{Code: CodeMeanMotion}
	}

	// initl: recover the original mean motion and semi-major axis.
	eccsq := p.ecco * p.ecco
	omeosq := 1.0 - eccsq
	rteosq := math.Sqrt(omeosq)
	cosio := math.Cos(p.inclo)
	cosio2 := cosio * cosio

	ak := math.Pow(g.xke/p.no, x2o3)
	d1 := 0.75 * g.j2 * (3.0*cosio2 - 1.0) / (rteosq * omeosq)
	del := d1 / (ak * ak)
	adel := ak * (1.0 - del*del - del*(1.0/3.0+134.0*del*del/81.0))
	del = d1 / (adel * adel)
	p.no = p.no / (1.0 + del)
	if !(p.no > 0) {
		return &Error{Code: CodeMeanMotion}
	}

	ao := math.Pow(g.xke/p.no, x2o3)
	sinio := math.Sin(p.inclo)
	po := ao * omeosq
	con42 := 1.0 - 5.0*cosio2
	con41 := -con42 - cosio2 - cosio2
	posq := po * po
	rp := ao * (1.0 - p.ecco)
	p.gsto = transform.GMST82(p.epoch)

	ss := 78.0/re + 1.0
	qzms2t := math.Pow((120.0-78.0)/re, 4)

	ne := &nearEarth{isimp: rp < 220.0/re+1.0}

	// For perigees below 156 km, s and qoms2t are altered.
	sfour := ss
	qzms24 := qzms2t
	perige := (rp - 1.0) * re
	if perige < 156.0 {
		sfour = perige - 78.0
		if perige < 98.0 {
			sfour = 20.0
		}
		qzms24 = math.Pow((120.0-sfour)/re, 4)
		sfour = sfour/re + 1.0
	}
	pinvsq := 1.0 / posq

	tsi := 1.0 / (ao - sfour)
	ne.eta = ao * p.ecco * tsi
	etasq := ne.eta * ne.eta
	eeta := p.ecco * ne.eta
	psisq := math.Abs(1.0 - etasq)
	coef := qzms24 * math.Pow(tsi, 4)
	coef1 := coef / math.Pow(psisq, 3.5)
	cc2 := coef1 * p.no * (ao*(1.0+1.5*etasq+eeta*(4.0+etasq)) +
		0.375*g.j2*tsi/psisq*con41*(8.0+3.0*etasq*(8.0+etasq)))
	p.cc1 = p.bstar * cc2
	cc3 := 0.0
	if p.ecco > 1.0e-4 {
		cc3 = -2.0 * coef * tsi * g.j3oj2 * p.no * sinio / p.ecco
	}
	x1mth2 := 1.0 - cosio2
	p.cc4 = 2.0 * p.no * coef1 * ao * omeosq *
		(ne.eta*(2.0+0.5*etasq) + p.ecco*(0.5+2.0*etasq) -
			g.j2*tsi/(ao*psisq)*
				(-3.0*con41*(1.0-2.0*eeta+etasq*(1.5-0.5*eeta))+
					0.75*x1mth2*(2.0*etasq-eeta*(1.0+etasq))*math.Cos(2.0*p.argpo)))
	ne.cc5 = 2.0 * coef1 * ao * omeosq * (1.0 + 2.75*(etasq+eeta) + eeta*etasq)

	cosio4 := cosio2 * cosio2
	temp1 := 1.5 * g.j2 * pinvsq * p.no
	temp2 := 0.5 * temp1 * g.j2 * pinvsq
	temp3 := -0.46875 * g.j4 * pinvsq * pinvsq * p.no
	p.mdot = p.no + 0.5*temp1*rteosq*con41 +
		0.0625*temp2*rteosq*(13.0-78.0*cosio2+137.0*cosio4)
	p.argpdot = -0.5*temp1*con42 +
		0.0625*temp2*(7.0-114.0*cosio2+395.0*cosio4) +
		temp3*(3.0-36.0*cosio2+49.0*cosio4)
	xhdot1 := -temp1 * cosio
	p.nodedot = xhdot1 + (0.5*temp2*(4.0-19.0*cosio2)+2.0*temp3*(3.0-7.0*cosio2))*cosio
	xpidot := p.argpdot + p.nodedot

	ne.omgcof = p.bstar * cc3 * math.Cos(p.argpo)
	if p.ecco > 1.0e-4 {
		ne.xmcof = -x2o3 * coef * p.bstar / eeta
	}
	p.nodecf = 3.5 * omeosq * xhdot1 * p.cc1
	p.t2cof = 1.5 * p.cc1

	p.sp = shortPeriodCoefs(g, sinio, cosio)

	delmotemp := 1.0 + ne.eta*math.Cos(p.mo)
	ne.delmo = delmotemp * delmotemp * delmotemp
	ne.sinmao = math.Sin(p.mo)

	if twoPi/p.no >= deepSpaceMinPer {
		ds := &deepSpace{}
		ds.init(p, eccsq, xpidot)
		p.branch = ds
		return nil
	}

	if !ne.isimp {
		cc1sq := p.cc1 * p.cc1
		ne.d2 = 4.0 * ao * tsi * cc1sq
		temp := ne.d2 * tsi * p.cc1 / 3.0
		ne.d3 = (17.0*ao + sfour) * temp
		ne.d4 = 0.5 * temp * ao * tsi * (221.0*ao + 31.0*sfour) * p.cc1
		ne.t3cof = ne.d2 + 2.0*cc1sq
		ne.t4cof = 0.25 * (3.0*ne.d3 + p.cc1*(12.0*ne.d2+10.0*cc1sq))
		ne.t5cof = 0.2 * (3.0*ne.d4 + 12.0*p.cc1*ne.d3 +
			6.0*ne.d2*ne.d2 + 15.0*cc1sq*(2.0*ne.d2+cc1sq))
	}
	p.branch = ne
	return nil
}

// shortPeriodCoefs returns the long- and short-period coefficients at the
// inclination with the given sine and cosine.
func shortPeriodCoefs(g *gravConsts, sini, cosi float64) shortPeriod {
	cosisq := cosi * cosi
	sp := shortPeriod{
		aycof:  -0.5 * g.j3oj2 * sini,
		con41:  3.0*cosisq - 1.0,
		x1mth2: 1.0 - cosisq,
		x7thm1: 7.0*cosisq - 1.0,
	}
	// Avoid a divide by zero at 180 degrees inclination.
	if math.Abs(cosi+1.0) > 1.5e-12 {
		sp.xlcof = -0.25 * g.j3oj2 * sini * (3.0 + 5.0*cosi) / (1.0 + cosi)
	} else {
		sp.xlcof = -0.25 * g.j3oj2 * sini * (3.0 + 5.0*cosi) / temp4
	}
	return sp
}

// propagate is the sgp4 routine: position (km) and velocity (km/s) in TEME
// at t minutes from epoch.
func (p *Propagator) propagate(t float64) (r, v [3]float64, err error) {
	g := &p.g
	vkmpersec := g.radiusearthkm * g.xke / 60.0

	// Update for secular gravity and atmospheric drag.
	t2 := t * t
	s := secularState{
		xmdf:  p.mo + p.mdot*t,
		argpm: p.argpo + p.argpdot*t,
		nodem: p.nodeo + p.nodedot*t + p.nodecf*t2,
		em:    p.ecco,
		inclm: p.inclo,
		nm:    p.no,
		tempa: 1.0 - p.cc1*t,
		tempe: p.bstar * p.cc4 * t,
		templ: p.t2cof * t2,
	}
	s.mm = s.xmdf
	p.branch.secular(p, t, &s)

	if s.nm <= 0.0 {
		return r, v, &Error{Code: CodeMeanMotion, Tsince: t}
	}
	am := math.Pow(g.xke/s.nm, x2o3) * s.tempa * s.tempa
	nm := g.xke / math.Pow(am, 1.5)
	em := s.em - s.tempe

	if em >= 1.0 || em < -0.001 || math.IsNaN(em) {
		return r, v, &Error{Code: CodeMeanEccentricity, Tsince: t}
	}
	// Avoid a divide by zero for circular orbits.
	if em < 1.0e-6 {
		em = 1.0e-6
	}
	mm := s.mm + p.no*s.templ
	xlm := mm + s.argpm + s.nodem

	nodem := math.Mod(s.nodem, twoPi)
	argpm := math.Mod(s.argpm, twoPi)
	xlm = math.Mod(xlm, twoPi)
	mm = math.Mod(xlm-argpm-nodem, twoPi)

	// Add lunar-solar periodics.
	o := osculating{ep: em, xincp: s.inclm, nodep: nodem, argpp: argpm, mp: mm}
	sp, err := p.branch.periodics(p, t, &o)
	if err != nil {
		return r, v, err
	}
	sinip, cosip := math.Sincos(o.xincp)

	// Long period periodics.
	axnl := o.ep * math.Cos(o.argpp)
	temp := 1.0 / (am * (1.0 - o.ep*o.ep))
	aynl := o.ep*math.Sin(o.argpp) + temp*sp.aycof
	xl := o.mp + o.argpp + o.nodep + temp*sp.xlcof*axnl

	// Solve Kepler's equation.
	u := math.Mod(xl-o.nodep, twoPi)
	eo1 := u
	tem5 := 9999.9
	var sineo1, coseo1 float64
	for ktr := 1; math.Abs(tem5) >= keplerTol && ktr <= keplerMaxIter; ktr++ {
		sineo1, coseo1 = math.Sincos(eo1)
		tem5 = 1.0 - coseo1*axnl - sineo1*aynl
		tem5 = (u - aynl*coseo1 + axnl*sineo1 - eo1) / tem5
		if math.Abs(tem5) >= 0.95 {
			tem5 = math.Copysign(0.95, tem5)
		}
		eo1 += tem5
	}
	if !(math.Abs(tem5) <= keplerGiveUp) {
		return r, v, fmt.Errorf("sgp4 at %.3f min from epoch: %w", t, ErrKeplerNotConverged)
	}

	// Short period preliminary quantities.
	ecose := axnl*coseo1 + aynl*sineo1
	esine := axnl*sineo1 - aynl*coseo1
	el2 := axnl*axnl + aynl*aynl
	pl := am * (1.0 - el2)
	if pl < 0.0 {
		return r, v, &Error{Code: CodeSemiLatusRectum, Tsince: t}
	}

	rl := am * (1.0 - ecose)
	rdotl := math.Sqrt(am) * esine / rl
	rvdotl := math.Sqrt(pl) / rl
	betal := math.Sqrt(1.0 - el2)
	temp = esine / (1.0 + betal)
	sinu := am / rl * (sineo1 - aynl - axnl*temp)
	cosu := am / rl * (coseo1 - axnl + aynl*temp)
	su := math.Atan2(sinu, cosu)
	sin2u := (cosu + cosu) * sinu
	cos2u := 1.0 - 2.0*sinu*sinu
	temp = 1.0 / pl
	temp1 := 0.5 * g.j2 * temp
	temp2 := temp1 * temp

	// Update for short period periodics.
	mrt := rl*(1.0-1.5*temp2*betal*sp.con41) + 0.5*temp1*sp.x1mth2*cos2u
	su -= 0.25 * temp2 * sp.x7thm1 * sin2u
	xnode := o.nodep + 1.5*temp2*cosip*sin2u
	xinc := o.xincp + 1.5*temp2*cosip*sinip*cos2u
	mvt := rdotl - nm*temp1*sp.x1mth2*sin2u/g.xke
	rvdot := rvdotl + nm*temp1*(sp.x1mth2*cos2u+1.5*sp.con41)/g.xke

	// Orientation vectors.
	sinsu, cossu := math.Sincos(su)
	snod, cnod := math.Sincos(xnode)
	sini, cosi := math.Sincos(xinc)
	xmx := -snod * cosi
	xmy := cnod * cosi
	ux := xmx*sinsu + cnod*cossu
	uy := xmy*sinsu + snod*cossu
	uz := sini * sinsu
	vx := xmx*cossu - cnod*sinsu
	vy := xmy*cossu - snod*sinsu
	vz := sini * cossu

	r = [3]float64{mrt * ux * g.radiusearthkm, mrt * uy * g.radiusearthkm, mrt * uz * g.radiusearthkm}
	v = [3]float64{
		(mvt*ux + rvdot*vx) * vkmpersec,
		(mvt*uy + rvdot*vy) * vkmpersec,
		(mvt*uz + rvdot*vz) * vkmpersec,
	}

	if mrt < 1.0 {
		return r, v, &Error{Code: CodeDecayed, Tsince: t}
	}
	return r, v, nil
}

// Propagate returns the TEME state at t. TT epochs are converted to UTC
// with the built-in leap second table first.
func (p *Propagator) Propagate(t transform.Epoch) (transform.StateVector, error) {
	switch t.Scale() {
	case transform.UTC:
	case transform.TT:
		t = transform.TTToUTC(t, nil)
	default:
		return transform.StateVector{}, fmt.Errorf("propagate: unsupported time scale %s", t.Scale())
	}
	sv, err := p.PropagateMinutes(t.MinutesSince(p.epoch))
	if err != nil {
		return transform.StateVector{}, err
	}
	sv.Epoch = t
	return sv, nil
}

// PropagateMinutes returns the TEME state tsince minutes after the element
// epoch, in meters and meters per second.
func (p *Propagator) PropagateMinutes(tsince float64) (transform.StateVector, error) {
	if math.IsNaN(tsince) || math.IsInf(tsince, 0) {
		return transform.StateVector{}, fmt.Errorf("propagate: invalid time offset %v", tsince)
	}
	r, v, err := p.propagate(tsince)
	if err != nil {
		return transform.StateVector{}, err
	}
	return transform.StateVector{
		Epoch:    p.epoch.AddMinutes(tsince),
		Frame:    transform.FrameTEME,
		Position: transform.Vec3{r[0] * 1000.0, r[1] * 1000.0, r[2] * 1000.0},
		Velocity: transform.Vec3{v[0] * 1000.0, v[1] * 1000.0, v[2] * 1000.0},
	}, nil
}

// Branch reports the model selected at initialization.
func (p *Propagator) Branch() Branch { return p.branch.kind() }

// Period returns the orbital period in minutes from the un-Kozai'd mean motion.
func (p *Propagator) Period() float64 { return twoPi / p.no }

// Epoch returns the element epoch (UTC).
func (p *Propagator) Epoch() transform.Epoch { return p.epoch }

// Elements returns a copy of the element set the propagator was built from.
func (p *Propagator) Elements() tle.Elements { return p.el }

// Gravity returns the gravity model in use.
func (p *Propagator) Gravity() GravityModel { return p.grav }

// nearEarth is the SGP4 branch.
type nearEarth struct {
	isimp bool // perigee below 220 km: drop the higher-order drag terms

	eta, delmo, sinmao  float64
	cc5, omgcof, xmcof  float64
	d2, d3, d4          float64
	t3cof, t4cof, t5cof float64
}

func (*nearEarth) kind() Branch { return NearEarth }

func (b *nearEarth) secular(p *Propagator, t float64, s *secularState) {
	if b.isimp {
		return
	}
	delomg := b.omgcof * t
	delmtemp := 1.0 + b.eta*math.Cos(s.xmdf)
	delm := b.xmcof * (delmtemp*delmtemp*delmtemp - b.delmo)
	temp := delomg + delm
	s.mm = s.xmdf + temp
	s.argpm -= temp
	t2 := t * t
	t3 := t2 * t
	t4 := t3 * t
	s.tempa = s.tempa - b.d2*t2 - b.d3*t3 - b.d4*t4
	s.tempe += p.bstar * b.cc5 * (math.Sin(s.mm) - b.sinmao)
	s.templ += b.t3cof*t3 + t4*(b.t4cof+t*b.t5cof)
}

func (*nearEarth) periodics(p *Propagator, _ float64, _ *osculating) (shortPeriod, error) {
	return p.sp, nil
}
