package propagation

import "math"

// Lunar-solar and resonance constants (Spacetrack Report #3, Vallado 2006).
const (
	zns    = 1.19459e-5
	zes    = 0.01675
	znl    = 1.5835218e-4
	zel    = 0.05490
	c1ss   = 2.9864797e-6
	c1l    = 4.7968065e-7
	zsinis = 0.39785416
	zcosis = 0.91744867
	zcosgs = 0.1945905
	zsings = -0.98088458

	q22    = 1.7891679e-6
	q31    = 2.1460748e-6
	q33    = 2.2123015e-7
	root22 = 1.7891679e-6
	root32 = 3.7393792e-7
	root44 = 7.3636953e-9
	root52 = 1.1428639e-7
	root54 = 2.1765803e-9

	// rptim is the Earth rotation rate in rad/min.
	rptim = 4.37526908801129966e-3

	fasx2 = 0.13130908
	fasx4 = 2.8843198
	fasx6 = 0.37448087
	g22   = 5.7686396
	g32   = 0.95240898
	g44   = 1.8014998
	g52   = 1.0508330
	g54   = 4.4108898

	stepp = 720.0
	stepn = -720.0
	step2 = 259200.0

	// mjd1950 is the Julian Date of 1950 January 0.0, the deep-space time origin.
	mjd1950 = 2433281.5
)

// lunarSolar holds the periodic coefficients of the Sun and Moon.
type lunarSolar struct {
	e3, ee2, se2, se3  float64
	sgh2, sgh3, sgh4   float64
	sh2, sh3, si2, si3 float64
	sl2, sl3, sl4      float64
	xgh2, xgh3, xgh4   float64
	xh2, xh3, xi2, xi3 float64
	xl2, xl3, xl4      float64
	zmol, zmos         float64
}

// deepSpace is the SDP4 branch: lunar-solar secular and periodic terms and,
// for 12 h and 24 h orbits, geopotential resonance.
type deepSpace struct {
	lunarSolar

	irez int // 0 none, 1 synchronous, 2 half-day

	dedt, didt, dmdt, dnodt, domdt float64

	d2201, d2211, d3210, d3222, d4410 float64
	d4422, d5220, d5232, d5421, d5433 float64
	del1, del2, del3                  float64
	xfact, xlamo                      float64
}

// dscomTerms are the intermediate dscom values dsinit consumes.
type dscomTerms struct {
	sinim, cosim, emsq                           float64
	s1, s2, s3, s4, s5                           float64
	ss1, ss2, ss3, ss4, ss5                      float64
	sz1, sz3, sz11, sz13, sz21, sz23, sz31, sz33 float64
	z1, z3, z11, z13, z21, z23, z31, z33         float64
}

func (*deepSpace) kind() Branch { return DeepSpace }

func (d *deepSpace) init(p *Propagator, eccsq, xpidot float64) {
	day, frac := p.epoch.Parts()
	epoch := (day - mjd1950) + frac

	var c dscomTerms
	d.lunarSolar, c = dscom(epoch, p.ecco, p.argpo, 0, p.inclo, p.nodeo, p.no)
	d.dsinit(p, c, eccsq, xpidot)
}

// dscom computes the lunar-solar coefficients at tc minutes from epoch,
// where epoch is in days since 1950 January 0.0.
func dscom(epoch, ep, argpp, tc, inclp, nodep, np float64) (lunarSolar, dscomTerms) {
	var ls lunarSolar
	var c dscomTerms

	nm := np
	em := ep
	snodm, cnodm := math.Sincos(nodep)
	sinomm, cosomm := math.Sincos(argpp)
	c.sinim, c.cosim = math.Sincos(inclp)
	c.emsq = em * em
	betasq := 1.0 - c.emsq
	rtemsq := math.Sqrt(betasq)

	day := epoch + 18261.5 + tc/1440.0
	xnodce := math.Mod(4.5236020-9.2422029e-4*day, twoPi)
	stem, ctem := math.Sincos(xnodce)
	zcosil := 0.91375164 - 0.03568096*ctem
	zsinil := math.Sqrt(1.0 - zcosil*zcosil)
	zsinhl := 0.089683511 * stem / zsinil
	zcoshl := math.Sqrt(1.0 - zsinhl*zsinhl)
	gam := 5.8351514 + 0.0019443680*day
	zx := 0.39785416 * stem / zsinil
	zy := zcoshl*ctem + 0.91744867*zsinhl*stem
	zx = math.Atan2(zx, zy)
	zx = gam + zx - xnodce
	zsingl, zcosgl := math.Sincos(zx)

	// Solar terms first, then lunar.
	zcosg, zsing := zcosgs, zsings
	zcosi, zsini := zcosis, zsinis
	zcosh, zsinh := cnodm, snodm
	cc := c1ss
	xnoi := 1.0 / nm

	var s1, s2, s3, s4, s5, s6, s7 float64
	var z1, z2, z3, z11, z12, z13, z21, z22, z23, z31, z32, z33 float64
	var ss6, ss7, sz2, sz12, sz22, sz32 float64

	for lsflg := 1; lsflg <= 2; lsflg++ {
		a1 := zcosg*zcosh + zsing*zcosi*zsinh
		a3 := -zsing*zcosh + zcosg*zcosi*zsinh
		a7 := -zcosg*zsinh + zsing*zcosi*zcosh
		a8 := zsing * zsini
		a9 := zsing*zsinh + zcosg*zcosi*zcosh
		a10 := zcosg * zsini
		a2 := c.cosim*a7 + c.sinim*a8
		a4 := c.cosim*a9 + c.sinim*a10
		a5 := -c.sinim*a7 + c.cosim*a8
		a6 := -c.sinim*a9 + c.cosim*a10

		x1 := a1*cosomm + a2*sinomm
		x2 := a3*cosomm + a4*sinomm
		x3 := -a1*sinomm + a2*cosomm
		x4 := -a3*sinomm + a4*cosomm
		x5 := a5 * sinomm
		x6 := a6 * sinomm
		x7 := a5 * cosomm
		x8 := a6 * cosomm

		z31 = 12.0*x1*x1 - 3.0*x3*x3
		z32 = 24.0*x1*x2 - 6.0*x3*x4
		z33 = 12.0*x2*x2 - 3.0*x4*x4
		z1 = 3.0*(a1*a1+a2*a2) + z31*c.emsq
		z2 = 6.0*(a1*a3+a2*a4) + z32*c.emsq
		z3 = 3.0*(a3*a3+a4*a4) + z33*c.emsq
		z11 = -6.0*a1*a5 + c.emsq*(-24.0*x1*x7-6.0*x3*x5)
		z12 = -6.0*(a1*a6+a3*a5) + c.emsq*(-24.0*(x2*x7+x1*x8)+-6.0*(x3*x6+x4*x5))
		z13 = -6.0*a3*a6 + c.emsq*(-24.0*x2*x8-6.0*x4*x6)
		z21 = 6.0*a2*a5 + c.emsq*(24.0*x1*x5-6.0*x3*x7)
		z22 = 6.0*(a4*a5+a2*a6) + c.emsq*(24.0*(x2*x5+x1*x6)-6.0*(x4*x7+x3*x8))
		z23 = 6.0*a4*a6 + c.emsq*(24.0*x2*x6-6.0*x4*x8)
		z1 = z1 + z1 + betasq*z31
		z2 = z2 + z2 + betasq*z32
		z3 = z3 + z3 + betasq*z33
		s3 = cc * xnoi
		s2 = -0.5 * s3 / rtemsq
		s4 = s3 * rtemsq
		s1 = -15.0 * em * s4
		s5 = x1*x3 + x2*x4
		s6 = x2*x3 + x1*x4
		s7 = x2*x4 - x1*x3

		if lsflg == 1 {
			c.ss1, c.ss2, c.ss3, c.ss4, c.ss5, ss6, ss7 = s1, s2, s3, s4, s5, s6, s7
			c.sz1, sz2, c.sz3 = z1, z2, z3
			c.sz11, sz12, c.sz13 = z11, z12, z13
			c.sz21, sz22, c.sz23 = z21, z22, z23
			c.sz31, sz32, c.sz33 = z31, z32, z33
			zcosg, zsing = zcosgl, zsingl
			zcosi, zsini = zcosil, zsinil
			zcosh = zcoshl*cnodm + zsinhl*snodm
			zsinh = snodm*zcoshl - cnodm*zsinhl
			cc = c1l
		}
	}

	ls.zmol = math.Mod(4.7199672+0.22997150*day-gam, twoPi)
	ls.zmos = math.Mod(6.2565837+0.017201977*day, twoPi)

	// Solar terms.
	ls.se2 = 2.0 * c.ss1 * ss6
	ls.se3 = 2.0 * c.ss1 * ss7
	ls.si2 = 2.0 * c.ss2 * sz12
	ls.si3 = 2.0 * c.ss2 * (c.sz13 - c.sz11)
	ls.sl2 = -2.0 * c.ss3 * sz2
	ls.sl3 = -2.0 * c.ss3 * (c.sz3 - c.sz1)
	ls.sl4 = -2.0 * c.ss3 * (-21.0 - 9.0*c.emsq) * zes
	ls.sgh2 = 2.0 * c.ss4 * sz32
	ls.sgh3 = 2.0 * c.ss4 * (c.sz33 - c.sz31)
	ls.sgh4 = -18.0 * c.ss4 * zes
	ls.sh2 = -2.0 * c.ss2 * sz22
	ls.sh3 = -2.0 * c.ss2 * (c.sz23 - c.sz21)

	// Lunar terms.
	ls.ee2 = 2.0 * s1 * s6
	ls.e3 = 2.0 * s1 * s7
	ls.xi2 = 2.0 * s2 * z12
	ls.xi3 = 2.0 * s2 * (z13 - z11)
	ls.xl2 = -2.0 * s3 * z2
	ls.xl3 = -2.0 * s3 * (z3 - z1)
	ls.xl4 = -2.0 * s3 * (-21.0 - 9.0*c.emsq) * zel
	ls.xgh2 = 2.0 * s4 * z32
	ls.xgh3 = 2.0 * s4 * (z33 - z31)
	ls.xgh4 = -18.0 * s4 * zel
	ls.xh2 = -2.0 * s2 * z22
	ls.xh3 = -2.0 * s2 * (z23 - z21)

	c.s1, c.s2, c.s3, c.s4, c.s5 = s1, s2, s3, s4, s5
	c.z1, c.z3, c.z11, c.z13 = z1, z3, z11, z13
	c.z21, c.z23, c.z31, c.z33 = z21, z23, z31, z33
	return ls, c
}

// dsinit computes the deep-space secular rates and, for resonant orbits,
// the resonance coefficients.
func (d *deepSpace) dsinit(p *Propagator, c dscomTerms, eccsq, xpidot float64) {
	nm := p.no
	em := p.ecco
	emsq := c.emsq
	inclm := p.inclo
	sinim, cosim := c.sinim, c.cosim

	switch {
	case nm < 0.0052359877 && nm > 0.0034906585:
		d.irez = 1
	case nm >= 8.26e-3 && nm <= 9.24e-3 && em >= 0.5:
		d.irez = 2
	}

	// Solar terms.
	ses := c.ss1 * zns * c.ss5
	sis := c.ss2 * zns * (c.sz11 + c.sz13)
	sls := -zns * c.ss3 * (c.sz1 + c.sz3 - 14.0 - 6.0*emsq)
	sghs := c.ss4 * zns * (c.sz31 + c.sz33 - 6.0)
	shs := -zns * c.ss2 * (c.sz21 + c.sz23)
	nearEquatorial := inclm < 5.2359877e-2 || inclm > math.Pi-5.2359877e-2
	if nearEquatorial {
		shs = 0.0
	}
	if sinim != 0.0 {
		shs /= sinim
	}
	sgs := sghs - cosim*shs

	// Lunar terms.
	d.dedt = ses + c.s1*znl*c.s5
	d.didt = sis + c.s2*znl*(c.z11+c.z13)
	d.dmdt = sls - znl*c.s3*(c.z1+c.z3-14.0-6.0*emsq)
	sghl := c.s4 * znl * (c.z31 + c.z33 - 6.0)
	shll := -znl * c.s2 * (c.z21 + c.z23)
	if nearEquatorial {
		shll = 0.0
	}
	d.domdt = sgs + sghl
	d.dnodt = shs
	if sinim != 0.0 {
		d.domdt -= cosim / sinim * shll
		d.dnodt += shll / sinim
	}

	if d.irez == 0 {
		return
	}

	theta := math.Mod(p.gsto, twoPi)
	aonv := math.Pow(nm/p.g.xke, x2o3)

	if d.irez == 2 {
		// Geopotential resonance for 12 hour orbits.
		cosisq := cosim * cosim
		em = p.ecco
		emsq = eccsq
		eoc := em * emsq
		g201 := -0.306 - (em-0.64)*0.440

		var g211, g310, g322, g410, g422, g520, g521, g532, g533 float64
		if em <= 0.65 {
			g211 = 3.616 - 13.2470*em + 16.2900*emsq
			g310 = -19.302 + 117.3900*em - 228.4190*emsq + 156.5910*eoc
			g322 = -18.9068 + 109.7927*em - 214.6334*emsq + 146.5816*eoc
			g410 = -41.122 + 242.6940*em - 471.0940*emsq + 313.9530*eoc
			g422 = -146.407 + 841.8800*em - 1629.014*emsq + 1083.4350*eoc
			g520 = -532.114 + 3017.977*em - 5740.032*emsq + 3708.2760*eoc
		} else {
			g211 = -72.099 + 331.819*em - 508.738*emsq + 266.724*eoc
			g310 = -346.844 + 1582.851*em - 2415.925*emsq + 1246.113*eoc
			g322 = -342.585 + 1554.908*em - 2366.899*emsq + 1215.972*eoc
			g410 = -1052.797 + 4758.686*em - 7193.992*emsq + 3651.957*eoc
			g422 = -3581.690 + 16178.110*em - 24462.770*emsq + 12422.520*eoc
			if em > 0.715 {
				g520 = -5149.66 + 29936.92*em - 54087.36*emsq + 31324.56*eoc
			} else {
				g520 = 1464.74 - 4664.75*em + 3763.64*emsq
			}
		}
		if em < 0.7 {
			g533 = -919.22770 + 4988.6100*em - 9064.7700*emsq + 5542.21*eoc
			g521 = -822.71072 + 4568.6173*em - 8491.4146*emsq + 5337.524*eoc
			g532 = -853.66600 + 4690.2500*em - 8624.7700*emsq + 5341.4*eoc
		} else {
			g533 = -37995.780 + 161616.52*em - 229838.20*emsq + 109377.94*eoc
			g521 = -51752.104 + 218913.95*em - 309468.16*emsq + 146349.42*eoc
			g532 = -40023.880 + 170470.89*em - 242699.48*emsq + 115605.82*eoc
		}

		sini2 := sinim * sinim
		f220 := 0.75 * (1.0 + 2.0*cosim + cosisq)
		f221 := 1.5 * sini2
		f321 := 1.875 * sinim * (1.0 - 2.0*cosim - 3.0*cosisq)
		f322 := -1.875 * sinim * (1.0 + 2.0*cosim - 3.0*cosisq)
		f441 := 35.0 * sini2 * f220
		f442 := 39.3750 * sini2 * sini2
		f522 := 9.84375 * sinim * (sini2*(1.0-2.0*cosim-5.0*cosisq) +
			0.33333333*(-2.0+4.0*cosim+6.0*cosisq))
		f523 := sinim * (4.92187512*sini2*(-2.0-4.0*cosim+10.0*cosisq) +
			6.56250012*(1.0+2.0*cosim-3.0*cosisq))
		f542 := 29.53125 * sinim * (2.0 - 8.0*cosim + cosisq*(-12.0+8.0*cosim+10.0*cosisq))
		f543 := 29.53125 * sinim * (-2.0 - 8.0*cosim + cosisq*(12.0+8.0*cosim-10.0*cosisq))

		xno2 := nm * nm
		ainv2 := aonv * aonv
		temp1 := 3.0 * xno2 * ainv2
		temp := temp1 * root22
		d.d2201 = temp * f220 * g201
		d.d2211 = temp * f221 * g211
		temp1 *= aonv
		temp = temp1 * root32
		d.d3210 = temp * f321 * g310
		d.d3222 = temp * f322 * g322
		temp1 *= aonv
		temp = 2.0 * temp1 * root44
		d.d4410 = temp * f441 * g410
		d.d4422 = temp * f442 * g422
		temp1 *= aonv
		temp = temp1 * root52
		d.d5220 = temp * f522 * g520
		d.d5232 = temp * f523 * g532
		temp = 2.0 * temp1 * root54
		d.d5421 = temp * f542 * g521
		d.d5433 = temp * f543 * g533
		d.xlamo = math.Mod(p.mo+p.nodeo+p.nodeo-theta-theta, twoPi)
		d.xfact = p.mdot + d.dmdt + 2.0*(p.nodedot+d.dnodt-rptim) - p.no
		return
	}

	// Synchronous resonance terms.
	g200 := 1.0 + emsq*(-2.5+0.8125*emsq)
	g310 := 1.0 + 2.0*emsq
	g300 := 1.0 + emsq*(-6.0+6.60937*emsq)
	f220 := 0.75 * (1.0 + cosim) * (1.0 + cosim)
	f311 := 0.9375*sinim*sinim*(1.0+3.0*cosim) - 0.75*(1.0+cosim)
	f330 := 1.0 + cosim
	f330 = 1.875 * f330 * f330 * f330
	d.del1 = 3.0 * nm * nm * aonv * aonv
	d.del2 = 2.0 * d.del1 * f220 * g200 * q22
	d.del3 = 3.0 * d.del1 * f330 * g300 * q33 * aonv
	d.del1 = d.del1 * f311 * g310 * q31 * aonv
	d.xlamo = math.Mod(p.mo+p.nodeo+p.argpo-theta, twoPi)
	d.xfact = p.mdot + xpidot - rptim + d.dmdt + d.domdt + d.dnodt - p.no
}

// secular is dspace. The resonance integrator always restarts from epoch,
// so every call is a pure function of t.
func (d *deepSpace) secular(p *Propagator, t float64, s *secularState) {
	theta := math.Mod(p.gsto+t*rptim, twoPi)
	s.em += d.dedt * t
	s.inclm += d.didt * t
	s.argpm += d.domdt * t
	s.nodem += d.dnodt * t
	s.mm += d.dmdt * t

	if d.irez == 0 {
		return
	}

	// Euler-Maclaurin integration in 720 minute steps.
	atime := 0.0
	xni := p.no
	xli := d.xlamo
	delt := stepn
	if t > 0.0 {
		delt = stepp
	}

	var xndt, xldot, xnddt, ft float64
	for {
		xndt, xldot, xnddt = d.rates(p, xli, xni, atime)
		if math.Abs(t-atime) < stepp {
			ft = t - atime
			break
		}
		xli += xldot*delt + xndt*step2
		xni += xndt*delt + xnddt*step2
		atime += delt
	}

	s.nm = xni + xndt*ft + xnddt*ft*ft*0.5
	xl := xli + xldot*ft + xndt*ft*ft*0.5
	if d.irez != 1 {
		s.mm = xl - 2.0*s.nodem + 2.0*theta
	} else {
		s.mm = xl - s.nodem - s.argpm + theta
	}
}

// rates returns the resonance derivatives at the integrator state.
func (d *deepSpace) rates(p *Propagator, xli, xni, atime float64) (xndt, xldot, xnddt float64) {
	xldot = xni + d.xfact
	if d.irez != 2 {
		// Near-synchronous resonance terms.
		xndt = d.del1*math.Sin(xli-fasx2) + d.del2*math.Sin(2.0*(xli-fasx4)) +
			d.del3*math.Sin(3.0*(xli-fasx6))
		xnddt = d.del1*math.Cos(xli-fasx2) + 2.0*d.del2*math.Cos(2.0*(xli-fasx4)) +
			3.0*d.del3*math.Cos(3.0*(xli-fasx6))
		return xndt, xldot, xnddt * xldot
	}

	// Near half-day resonance terms.
	xomi := p.argpo + p.argpdot*atime
	x2omi := xomi + xomi
	x2li := xli + xli
	xndt = d.d2201*math.Sin(x2omi+xli-g22) + d.d2211*math.Sin(xli-g22) +
		d.d3210*math.Sin(xomi+xli-g32) + d.d3222*math.Sin(-xomi+xli-g32) +
		d.d4410*math.Sin(x2omi+x2li-g44) + d.d4422*math.Sin(x2li-g44) +
		d.d5220*math.Sin(xomi+xli-g52) + d.d5232*math.Sin(-xomi+xli-g52) +
		d.d5421*math.Sin(xomi+x2li-g54) + d.d5433*math.Sin(-xomi+x2li-g54)
	xnddt = d.d2201*math.Cos(x2omi+xli-g22) + d.d2211*math.Cos(xli-g22) +
		d.d3210*math.Cos(xomi+xli-g32) + d.d3222*math.Cos(-xomi+xli-g32) +
		d.d5220*math.Cos(xomi+xli-g52) + d.d5232*math.Cos(-xomi+xli-g52) +
		2.0*(d.d4410*math.Cos(x2omi+x2li-g44)+
			d.d4422*math.Cos(x2li-g44)+d.d5421*math.Cos(xomi+x2li-g54)+
			d.d5433*math.Cos(-xomi+x2li-g54))
	return xndt, xldot, xnddt * xldot
}

// periodics is dpper with the lunar-solar periodics applied to o.
func (d *deepSpace) periodics(p *Propagator, t float64, o *osculating) (shortPeriod, error) {
	ls := &d.lunarSolar

	zm := ls.zmos + zns*t
	zf := zm + 2.0*zes*math.Sin(zm)
	sinzf, coszf := math.Sincos(zf)
	f2 := 0.5*sinzf*sinzf - 0.25
	f3 := -0.5 * sinzf * coszf
	ses := ls.se2*f2 + ls.se3*f3
	sis := ls.si2*f2 + ls.si3*f3
	sls := ls.sl2*f2 + ls.sl3*f3 + ls.sl4*sinzf
	sghs := ls.sgh2*f2 + ls.sgh3*f3 + ls.sgh4*sinzf
	shs := ls.sh2*f2 + ls.sh3*f3

	zm = ls.zmol + znl*t
	zf = zm + 2.0*zel*math.Sin(zm)
	sinzf, coszf = math.Sincos(zf)
	f2 = 0.5*sinzf*sinzf - 0.25
	f3 = -0.5 * sinzf * coszf
	sel := ls.ee2*f2 + ls.e3*f3
	sil := ls.xi2*f2 + ls.xi3*f3
	sll := ls.xl2*f2 + ls.xl3*f3 + ls.xl4*sinzf
	sghl := ls.xgh2*f2 + ls.xgh3*f3 + ls.xgh4*sinzf
	shll := ls.xh2*f2 + ls.xh3*f3

	pe := ses + sel
	pinc := sis + sil
	pl := sls + sll
	pgh := sghs + sghl
	ph := shs + shll

	o.xincp += pinc
	o.ep += pe
	sinip, cosip := math.Sincos(o.xincp)

	if o.xincp >= 0.2 {
		ph /= sinip
		pgh -= cosip * ph
		o.argpp += pgh
		o.nodep += ph
		o.mp += pl
	} else {
		// Lyddane modification for low inclinations.
		sinop, cosop := math.Sincos(o.nodep)
		alfdp := sinip * sinop
		betdp := sinip * cosop
		dalf := ph*cosop + pinc*cosip*sinop
		dbet := -ph*sinop + pinc*cosip*cosop
		alfdp += dalf
		betdp += dbet
		o.nodep = math.Mod(o.nodep, twoPi)
		xls := o.mp + o.argpp + cosip*o.nodep
		dls := pl + pgh - pinc*o.nodep*sinip
		xls += dls
		xnoh := o.nodep
		o.nodep = math.Atan2(alfdp, betdp)
		if math.Abs(xnoh-o.nodep) > math.Pi {
			if o.nodep < xnoh {
				o.nodep += twoPi
			} else {
				o.nodep -= twoPi
			}
		}
		o.mp += pl
		o.argpp = xls - o.mp - cosip*o.nodep
	}

	if o.xincp < 0.0 {
		o.xincp = -o.xincp
		o.nodep += math.Pi
		o.argpp -= math.Pi
	}
	if o.ep < 0.0 || o.ep > 1.0 {
		return shortPeriod{}, &Error{Code: CodePerturbedEccentricity, Tsince: t}
	}

	sinip, cosip = math.Sincos(o.xincp)
	return shortPeriodCoefs(&p.g, sinip, cosip), nil
}
