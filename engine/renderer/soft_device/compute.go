package soft_device

// dispatch runs every workgroup of a recorded dispatch, one worker task per workgroup.
func (d *Device) dispatch(c *dispatchCall) error {
	p := c.pipeline
	if err := p.check("dispatch"); err != nil {
		return err
	}
	b, err := newBindings(p.layouts, c.groups, p.desc.Compute.Defines)
	if err != nil {
		return err
	}
	if err := b.require(stageRoles(p.desc.Compute)); err != nil {
		return err
	}

	nx, ny, nz := c.counts[0], c.counts[1], c.counts[2]
	size := p.desc.WorkgroupSize
	d.parallel(nx*ny*nz, func(i int) {
		group := [3]int{i % nx, (i / nx) % ny, i / (nx * ny)}
		p.kernel(b, group, size)
	})
	return nil
}
